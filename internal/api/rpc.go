package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/gray-logic-sensor/internal/audit"
	"github.com/nerrad567/gray-logic-sensor/internal/rpc"
)

// handleRPC serves POST /rpc.
//
// Every JSON-RPC outcome, including parse errors, is HTTP 200 with a
// JSON-RPC body. The only exceptions are an oversized body (413) and a
// call that the device cannot answer, where the connection is dropped.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	ctx := withCallSource(r.Context(), audit.TransportHTTP, r.RemoteAddr)
	resp, err := s.rpc.Handle(ctx, body)
	if errors.Is(err, rpc.ErrUnavailable) {
		s.logger.Debug("dropping rpc connection while device is unavailable",
			"remote_addr", r.RemoteAddr,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		s.dropConnection(w)
		return
	}
	if err != nil {
		s.logger.Error("rpc dispatch failed", "error", err)
		writeInternalError(w, "rpc dispatch failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(resp)
}
