package runnode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/warrantix/warrantix/agent/contract"
	statex "github.com/warrantix/warrantix/agent/state"
	vinx "github.com/warrantix/warrantix/agent/vin"
)

var (
	ErrEmptyQuery   = errors.New("query is empty")
	ErrQueryTooLong = errors.New("query exceeds the length limit")
)

const maxQueryLength = 2000

type GraphInput struct {
	Request contractx.AnalysisRequest
}

type GraphOutput struct {
	Report *contractx.RunReport
}

type GraphState struct {
	Run      *statex.Run
	Response string
}

// ValidateRequest admits the request and opens the run. A malformed VIN is
// not fatal here (the HTTP layer rejects those with a 422): it is dropped
// with a note so a VIN inside the query text can still be picked up.
func ValidateRequest(in GraphInput, now func() time.Time) (*GraphState, error) {
	req := in.Request
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	if len(req.Query) > maxQueryLength {
		return nil, fmt.Errorf("%w: %d > %d", ErrQueryTooLong, len(req.Query), maxQueryLength)
	}

	var vinNote string
	if strings.TrimSpace(req.VIN) != "" {
		normalized := vinx.Normalize(req.VIN)
		if err := vinx.Validate(normalized); err != nil {
			vinNote = fmt.Sprintf("provided vin %q is invalid and was ignored", req.VIN)
			normalized = ""
		}
		req.VIN = normalized
	}

	run := statex.NewRun(req, now().UTC())
	if vinNote != "" {
		run.AddNote(vinNote)
	}

	return &GraphState{Run: run}, nil
}
