package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/Amr-9/btcvanity/internal/store"
	"github.com/Amr-9/btcvanity/pkg/generator"
	"github.com/Amr-9/btcvanity/pkg/generator/bitcoin"
)

const (
	// DefaultBatchSize is the number of addresses /generate-batch returns
	// when no batch_size is given.
	DefaultBatchSize = 10

	// MaxBatchSize caps batch_size.
	MaxBatchSize = 100

	// DefaultResultLimit is the number of results /results returns when
	// no limit is given.
	DefaultResultLimit = 20

	// maxBodyBytes caps request bodies.
	maxBodyBytes = 1 << 16
)

// searchRequest is the JSON body shared by the search endpoints and the
// WebSocket start action.
type searchRequest struct {
	AddressType string `json:"address_type"`
	Pattern     string `json:"pattern"`
	Position    string `json:"position"`
}

// toRequest validates the body and converts it into a search request.
func (r *searchRequest) toRequest() (*generator.Request, error) {
	format, err := bitcoin.ParseFormat(r.AddressType)
	if err != nil {
		return nil, err
	}
	position, err := generator.ParsePosition(r.Position)
	if err != nil {
		return nil, err
	}

	return &generator.Request{
		Format:       format,
		Pattern:      r.Pattern,
		Position:     position,
		AttemptLimit: fn.None[uint64](),
	}, nil
}

// generationResponse reports a single address.
type generationResponse struct {
	Address    string   `json:"address"`
	PrivateKey string   `json:"private_key"`
	Attempts   uint64   `json:"attempts"`
	Success    bool     `json:"success"`
	Note       string   `json:"note,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

type addressType struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Prefix      string `json:"prefix"`
}

type keyPair struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
}

type deriveRequest struct {
	PrivateKey  string `json:"private_key"`
	AddressType string `json:"address_type"`
}

type validateRequest struct {
	Address string `json:"address"`
}

type validateResponse struct {
	Address     string `json:"address"`
	Valid       bool   `json:"valid"`
	AddressType string `json:"address_type,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

type resultRecord struct {
	ID          uint64    `json:"id"`
	Address     string    `json:"address"`
	PrivateKey  string    `json:"private_key"`
	AddressType string    `json:"address_type"`
	Pattern     string    `json:"pattern"`
	Position    string    `json:"position"`
	Attempts    uint64    `json:"attempts"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleAddressTypes(w http.ResponseWriter, _ *http.Request) {
	types := make([]addressType, 0, len(generator.Formats))
	for _, format := range generator.Formats {
		types = append(types, addressType{
			Value:       format.String(),
			Label:       bitcoin.AddressLabel(format),
			Description: bitcoin.AddressDescription(format),
			Prefix:      bitcoin.AddressPrefix(format),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"types": types})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if !decodeBody(w, r, &body) {
		return
	}
	format, err := bitcoin.ParseFormat(body.AddressType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	candidate, err := bitcoin.NewCandidate(s.cfg.Rand, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.cfg.Metrics.AddGenerated(1)

	writeJSON(w, http.StatusOK, generationResponse{
		Address:    candidate.Address,
		PrivateKey: candidate.WIF(),
		Attempts:   1,
		Success:    true,
	})
}

func (s *Server) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	size, err := queryInt(r, "batch_size", DefaultBatchSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if size <= 0 || size > MaxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Errorf(
			"batch_size must be between 1 and %d", MaxBatchSize))
		return
	}

	var body searchRequest
	if !decodeBody(w, r, &body) {
		return
	}
	format, err := bitcoin.ParseFormat(body.AddressType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	pairs := make([]keyPair, 0, size)
	for i := 0; i < size; i++ {
		candidate, err := bitcoin.NewCandidate(s.cfg.Rand, format)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		pairs = append(pairs, keyPair{
			Address:    candidate.Address,
			PrivateKey: candidate.WIF(),
		})
	}
	s.cfg.Metrics.AddGenerated(size)

	writeJSON(w, http.StatusOK, map[string]any{
		"addresses": pairs,
		"count":     len(pairs),
		"success":   true,
	})
}

func (s *Server) handleFindPattern(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Pattern == "" {
		writeError(w, http.StatusBadRequest, ErrEmptyPattern)
		return
	}

	req, err := body.toRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if raw := r.URL.Query().Get("max_attempts"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf(
				"invalid max_attempts %q: %w", raw, err))
			return
		}
		req.AttemptLimit = fn.Some(limit)
	}

	ctx := r.Context()
	log.DebugS(ctx, "Pattern search requested",
		slog.String("format", req.Format.String()),
		slog.String("pattern", req.Pattern),
		slog.String("position", req.Position.String()),
		slog.String("remote", r.RemoteAddr))

	start := time.Now()
	s.cfg.Metrics.JobStarted()
	outcome, err := s.cfg.Searcher.Search(ctx, req, generator.Hooks{})
	if err != nil {
		s.cfg.Metrics.JobFinished("invalid", time.Since(start))
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.cfg.Metrics.JobFinished(outcome.Status.String(), time.Since(start))
	s.cfg.Metrics.AddAttempts(outcome.Attempts)

	resp := generationResponse{
		Attempts: outcome.Attempts,
		Note:     outcome.Note,
		Warnings: bitcoin.PatternWarnings(
			req.Pattern, req.Format, req.Position,
		),
	}
	if outcome.Status == generator.StatusFound {
		resp.Address = outcome.Result.Address
		resp.PrivateKey = outcome.Result.PrivateKey
		resp.Success = true

		s.saveResult(ctx, outcome.Result, req, store.SourceAPI)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	var body deriveRequest
	if !decodeBody(w, r, &body) {
		return
	}
	format, err := bitcoin.ParseFormat(body.AddressType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	priv, err := hex.DecodeString(strings.TrimPrefix(body.PrivateKey, "0x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf(
			"private_key must be hex encoded: %w", err))
		return
	}

	privKey, pubKey, err := bitcoin.DerivePublicKey(priv)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	address, err := bitcoin.EncodeAddress(pubKey, format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"address":      address,
		"private_key":  bitcoin.PrivateKeyToWIF(privKey),
		"address_type": format.String(),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body validateRequest
	if !decodeBody(w, r, &body) {
		return
	}

	resp := validateResponse{Address: body.Address}
	format, err := bitcoin.DetectFormat(body.Address)
	if err == nil && bitcoin.IsBase58Type(format) {
		_, err = bitcoin.VerifyBase58Check(body.Address)
	}

	switch {
	case err != nil:
		resp.Detail = err.Error()

	default:
		resp.Valid = true
		resp.AddressType = format.String()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		writeError(w, http.StatusNotFound,
			errors.New("result store is disabled"))
		return
	}

	limit, err := queryInt(r, "limit", DefaultResultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	records, err := s.cfg.Store.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	total, err := s.cfg.Store.Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	results := make([]resultRecord, 0, len(records))
	for _, rec := range records {
		results = append(results, resultRecord{
			ID:          rec.ID,
			Address:     rec.Address,
			PrivateKey:  rec.PrivateKey,
			AddressType: rec.Format.String(),
			Pattern:     rec.Pattern,
			Position:    rec.Position.String(),
			Attempts:    rec.Attempts,
			Source:      string(rec.Source),
			CreatedAt:   rec.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
		"total":   total,
	})
}

// decodeBody parses a JSON request body into v. It writes a 400 response
// and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf(
			"invalid request body: %w", err))
		return false
	}
	return true
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Unable to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
