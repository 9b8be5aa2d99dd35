package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/TFMV/recon/pkg/core"
	"github.com/TFMV/recon/pkg/reconcile"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DatasetPayload is an inline dataset. When Columns is empty the columns are
// the union of record fields in sorted order.
type DatasetPayload struct {
	Name    string           `json:"name"`
	Columns []string         `json:"columns"`
	Records []map[string]any `json:"records"`
}

// CompareRequest is the body of POST /compare.
type CompareRequest struct {
	Name   string          `json:"name"`
	Source DatasetPayload  `json:"source"`
	Target DatasetPayload  `json:"target"`
	Config json.RawMessage `json:"config"`
}

func (s *Server) compare(c *fiber.Ctx) error {
	var req CompareRequest
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}

	cfg := core.DefaultComparisonConfig()
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid config: %v", err))
		}
	}

	source := req.Source.dataset("source")
	target := req.Target.dataset("target")

	start := time.Now()
	result, err := s.engine.Compare(source, target, cfg)
	if err != nil {
		s.collector.ObserveError(time.Since(start))
		return compareError(err)
	}

	name := req.Name
	if name == "" {
		name = "inline"
	}
	s.collector.Observe(name, result)
	s.logger.Info("inline comparison complete",
		zap.String("comparison", name),
		zap.String("status", string(result.Status())),
	)
	return c.JSON(result)
}

// compareError maps engine errors to HTTP errors.
func compareError(err error) error {
	switch {
	case errors.Is(err, reconcile.ErrDuplicateKey):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, reconcile.ErrConfiguration),
		errors.Is(err, reconcile.ErrMissingKeyColumn),
		errors.Is(err, reconcile.ErrNullKey):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

func (p DatasetPayload) dataset(fallback string) *core.Dataset {
	name := p.Name
	if name == "" {
		name = fallback
	}
	columns := p.Columns
	if len(columns) == 0 {
		seen := map[string]struct{}{}
		for _, rec := range p.Records {
			for col := range rec {
				if _, ok := seen[col]; !ok {
					seen[col] = struct{}{}
					columns = append(columns, col)
				}
			}
		}
		sort.Strings(columns)
	}

	ds := &core.Dataset{Name: name, Schema: core.NewSchema(columns...)}
	ds.Records = make([]core.Record, len(p.Records))
	for i, rec := range p.Records {
		r := make(core.Record, len(rec))
		for k, v := range rec {
			r[k] = jsonValue(v)
		}
		ds.Records[i] = r
	}
	return ds
}

// jsonValue converts decoded JSON numbers to int64 when integral, float64 otherwise.
func jsonValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
