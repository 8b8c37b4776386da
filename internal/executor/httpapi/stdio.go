package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// stdioRequest is one JSONL request line. Op selects the operation;
// the remaining fields are read per op.
type stdioRequest struct {
	Op        string `json:"op"` // dm, post, request_approval, check_approval
	Recipient string `json:"recipient,omitempty"`
	Message   string `json:"message,omitempty"`
	Caption   string `json:"caption,omitempty"`
	Action    string `json:"action,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Details   string `json:"details,omitempty"`
}

type stdioResponse struct {
	Result  string `json:"result,omitempty"`
	Blocked bool   `json:"blocked"`
	Error   string `json:"error,omitempty"`
}

// RunStdio serves requests line-by-line from in and writes one JSON
// response line per request to out. Returns when in closes or the
// context ends. Malformed lines get an error response; they never stop
// the loop.
func (s *Server) RunStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Info().Msg("stdio transport started")

	enc := json.NewEncoder(out)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var req stdioRequest
		if err := json.Unmarshal(line, &req); err != nil {
			_ = enc.Encode(stdioResponse{Error: "invalid JSON line"})
			continue
		}

		if err := enc.Encode(s.dispatch(ctx, req)); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read requests: %w", err)
	}

	s.log.Info().Msg("stdio transport closed")
	return nil
}

func (s *Server) dispatch(ctx context.Context, req stdioRequest) stdioResponse {
	switch req.Op {
	case "dm":
		res, err := s.exec.SendDirectMessage(ctx, req.Recipient, req.Message)
		if err != nil {
			return stdioResponse{Error: err.Error()}
		}
		return stdioResponse{Result: res.Message, Blocked: res.Blocked}

	case "post":
		res, err := s.exec.PublishPost(ctx, req.Caption)
		if err != nil {
			return stdioResponse{Error: err.Error()}
		}
		return stdioResponse{Result: res.Message, Blocked: res.Blocked}

	case "request_approval":
		if req.Action == "" {
			return stdioResponse{Error: "action is required"}
		}
		name, err := s.exec.RequestApproval(req.Action, req.Subject, req.Details)
		if err != nil {
			return stdioResponse{Error: err.Error()}
		}
		return stdioResponse{Result: name}

	case "check_approval":
		if req.Action == "" {
			return stdioResponse{Error: "action is required"}
		}
		ok, name, err := s.exec.CheckApproval(req.Action, req.Subject)
		if err != nil {
			return stdioResponse{Error: err.Error()}
		}
		return stdioResponse{Result: name, Blocked: !ok}

	default:
		return stdioResponse{Error: fmt.Sprintf("unknown op %q", req.Op)}
	}
}
