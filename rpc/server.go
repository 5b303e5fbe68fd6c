package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"yieldlock/native/ledger"
	"yieldlock/native/params"
	"yieldlock/native/registry"
)

// Server exposes the persisted ledger state to external readers. Every
// endpoint is read-only; mutations only happen through the engines embedded
// by the operator.
type Server struct {
	log      *slog.Logger
	registry *registry.Registry
	ledger   *ledger.Engine
	params   *params.Store
	limiter  *rate.Limiter
	metrics  *Metrics
}

// NewServer wires the query surface over the three engines. rps bounds the
// shared request budget; zero disables throttling.
func NewServer(log *slog.Logger, reg *registry.Registry, eng *ledger.Engine, store *params.Store, rps float64) *Server {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	return &Server{
		log:      log,
		registry: reg,
		ledger:   eng,
		params:   store,
		limiter:  limiter,
		metrics:  NewMetrics(),
	}
}

// Handler builds the chi router with the middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(throttle(s.limiter))
	r.Use(observe(s.log, s.metrics))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/assets", s.handleAssetList)
		v1.Get("/assets/{id}", s.handleAssetGet)
		v1.Get("/positions", s.handlePositionList)
		v1.Get("/positions/{id}", s.handlePositionGet)
		v1.Get("/params", s.handleParams)
		v1.Get("/counters", s.handleCounters)
	})
	return r
}

type assetView struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Decimals      uint8  `json:"decimals"`
	Valid         bool   `json:"valid"`
	OpenPositions uint64 `json:"openPositions"`
	MintFactor    string `json:"mintFactor"`
}

type positionView struct {
	ID              string `json:"id"`
	Owner           string `json:"owner"`
	AssetID         string `json:"assetId"`
	Collateral      string `json:"collateral"`
	StartTime       uint64 `json:"startTime"`
	EndTime         uint64 `json:"endTime"`
	TenureDays      uint32 `json:"tenureDays"`
	InterestRate    uint64 `json:"interestRate"`
	RewardRemaining string `json:"rewardRemaining"`
	Status          string `json:"status"`
}

type paramsView struct {
	ContractFeeRate       uint64                `json:"contractFeeRate"`
	MinEarlyRedeemFeeRate uint64                `json:"minEarlyRedeemFeeRate"`
	MaxEarlyRedeemFeeRate uint64                `json:"maxEarlyRedeemFeeRate"`
	TotalMintBudget       string                `json:"totalMintBudget"`
	Interest              []params.InterestTier `json:"interest"`
}

type countersView struct {
	TotalMinted     string `json:"totalMinted"`
	TotalMintBudget string `json:"totalMintBudget"`
}

func newAssetView(a *registry.Asset) assetView {
	return assetView{
		ID:            common.Address(a.ID).Hex(),
		Symbol:        a.Symbol,
		Decimals:      a.Decimals,
		Valid:         a.Valid,
		OpenPositions: a.OpenPositions,
		MintFactor:    a.MintFactor.Dec(),
	}
}

func newPositionView(p *ledger.Position) positionView {
	return positionView{
		ID:              common.Hash(p.ID).Hex(),
		Owner:           common.Address(p.Owner).Hex(),
		AssetID:         common.Address(p.AssetID).Hex(),
		Collateral:      p.Collateral.Dec(),
		StartTime:       p.StartTime,
		EndTime:         p.EndTime,
		TenureDays:      p.TenureDays,
		InterestRate:    p.InterestRate,
		RewardRemaining: p.RewardRemaining.Dec(),
		Status:          p.Status.String(),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && s.log != nil {
		s.log.Error("encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// parseRange reads the optional start/end query pair, defaulting to the full
// [0, count-1] range.
func parseRange(r *http.Request, count uint64) (uint64, uint64, error) {
	start, end := uint64(0), count
	if count > 0 {
		end = count - 1
	}
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, errors.New("malformed start index")
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, errors.New("malformed end index")
		}
		end = parsed
	}
	return start, end, nil
}

func parseAssetID(raw string) ([20]byte, error) {
	if !common.IsHexAddress(raw) {
		return [20]byte{}, errors.New("malformed asset identifier")
	}
	return common.HexToAddress(raw), nil
}

func parsePositionID(raw string) ([32]byte, error) {
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		raw = "0x" + raw
	}
	decoded, err := hexutil.Decode(raw)
	if err != nil || len(decoded) != 32 {
		return [32]byte{}, errors.New("malformed position identifier")
	}
	var id [32]byte
	copy(id[:], decoded)
	return id, nil
}

func (s *Server) handleAssetList(w http.ResponseWriter, r *http.Request) {
	count, err := s.registry.Count()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := []assetView{}
	if count > 0 {
		start, end, err := parseRange(r, count)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		ids, err := s.registry.ListRange(start, end)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		for _, id := range ids {
			asset, err := s.registry.Get(id)
			if err != nil {
				s.writeError(w, http.StatusInternalServerError, err)
				return
			}
			views = append(views, newAssetView(asset))
		}
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAssetGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	asset, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, registry.ErrAssetNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newAssetView(asset))
}

func (s *Server) handlePositionList(w http.ResponseWriter, r *http.Request) {
	count, err := s.ledger.Count()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := []positionView{}
	if count > 0 {
		start, end, err := parseRange(r, count)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		ids, err := s.ledger.ListRange(start, end)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		for _, id := range ids {
			pos, err := s.ledger.Get(id)
			if err != nil {
				s.writeError(w, http.StatusInternalServerError, err)
				return
			}
			views = append(views, newPositionView(pos))
		}
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePositionGet(w http.ResponseWriter, r *http.Request) {
	id, err := parsePositionID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	pos, err := s.ledger.Get(id)
	if err != nil {
		if errors.Is(err, ledger.ErrPositionNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPositionView(pos))
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	fee, err := s.params.ContractFee()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	minFee, maxFee, err := s.params.EarlyRedeemFeeBounds()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	budget, err := s.params.TotalMintBudget()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	table, err := s.params.InterestTable()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, paramsView{
		ContractFeeRate:       fee,
		MinEarlyRedeemFeeRate: minFee,
		MaxEarlyRedeemFeeRate: maxFee,
		TotalMintBudget:       budget.Dec(),
		Interest:              table,
	})
}

func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	minted, err := s.ledger.TotalMinted()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	budget, err := s.params.TotalMintBudget()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, countersView{
		TotalMinted:     minted.Dec(),
		TotalMintBudget: budget.Dec(),
	})
}
