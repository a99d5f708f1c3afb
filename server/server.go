// HTTP API for running elections.

package server

import (
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/staketools/offline-election-go/core"
	"github.com/staketools/offline-election-go/core/election"
	"github.com/staketools/offline-election-go/core/input"
	"github.com/staketools/offline-election-go/core/report"
)

type ElectionAPIServer struct {
	router *mux.Router
	log    *log.Logger

	host string
	port int

	engine *election.Engine
}

func NewElectionAPIServer(host string, port int) *ElectionAPIServer {
	s := &ElectionAPIServer{
		router: mux.NewRouter(),
		log:    core.NewLogger("api", ""),
		host:   host,
		port:   port,
		engine: election.NewEngine(),
	}

	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/elections", s.electionsHandler).Methods("POST")

	return s
}

func (s *ElectionAPIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Printf("Election API listening on http://%s\n", addr)
	return server.ListenAndServe()
}

// Router exposes the handler for tests.
func (s *ElectionAPIServer) Router() http.Handler {
	return s.router
}

type ConfigDoc struct {
	Algorithm     string        `json:"algorithm"`
	ActiveSetSize uint32        `json:"active_set_size"`
	BlockNumber   *uint64       `json:"block_number,omitempty"`
	Overrides     []OverrideDoc `json:"overrides,omitempty"`
}

type OverrideDoc struct {
	Kind    string   `json:"kind"`
	Account string   `json:"account,omitempty"`
	Target  string   `json:"target,omitempty"`
	Stake   string   `json:"stake,omitempty"`
	Targets []string `json:"targets,omitempty"`
	Size    uint32   `json:"size,omitempty"`
}

type electionRequest struct {
	Snapshot    input.SnapshotDoc `json:"snapshot"`
	Config      ConfigDoc         `json:"config"`
	Diagnostics bool              `json:"diagnostics"`
}

func (s *ElectionAPIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *ElectionAPIServer) electionsHandler(w http.ResponseWriter, r *http.Request) {
	var req electionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %s", err))
		return
	}

	data, err := req.Snapshot.ToElectionData()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := buildConfig(&req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Run(r.Context(), data, cfg, req.Diagnostics)
	if err != nil {
		status := http.StatusInternalServerError
		if election.IsValidationError(err) {
			status = http.StatusBadRequest
		} else if election.IsAlgorithmError(err) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	s.log.Printf("ran %s election: %d validators, undersized=%v\n",
		result.AlgorithmUsed, result.ValidatorCount(), result.Undersized)
	writeJSON(w, http.StatusOK, report.ResultDocument(result))
}

func buildConfig(doc *ConfigDoc) (*election.ElectionConfiguration, error) {
	kind, err := election.ParseAlgorithmKind(doc.Algorithm)
	if err != nil {
		return nil, err
	}

	cfg := &election.ElectionConfiguration{
		Algorithm:     kind,
		ActiveSetSize: doc.ActiveSetSize,
		BlockNumber:   doc.BlockNumber,
	}

	for _, ov := range doc.Overrides {
		parsed, err := parseOverride(ov)
		if err != nil {
			return nil, err
		}
		cfg.Overrides = append(cfg.Overrides, parsed)
	}

	return cfg, nil
}

func parseOverride(doc OverrideDoc) (election.Override, error) {
	ov := election.Override{
		Account: election.AccountID(doc.Account),
		Target:  election.AccountID(doc.Target),
		Size:    doc.Size,
	}
	for _, t := range doc.Targets {
		ov.Targets = append(ov.Targets, election.AccountID(t))
	}

	switch doc.Kind {
	case "set-candidate-stake":
		ov.Kind = election.SetCandidateStake
	case "set-nominator-stake":
		ov.Kind = election.SetNominatorStake
	case "add-edge":
		ov.Kind = election.AddEdge
	case "remove-edge":
		ov.Kind = election.RemoveEdge
	case "set-targets":
		ov.Kind = election.SetTargets
	case "set-active-set-size":
		ov.Kind = election.SetActiveSetSize
	default:
		return ov, fmt.Errorf("unknown override kind: %q", doc.Kind)
	}

	if doc.Stake != "" {
		stake, ok := new(big.Int).SetString(doc.Stake, 10)
		if !ok {
			return ov, fmt.Errorf("override stake %q is not a decimal integer", doc.Stake)
		}
		ov.Stake = stake
	}

	return ov, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
