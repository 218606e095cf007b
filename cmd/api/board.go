package main

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"clinic-orders/internal/models"

	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"
)

// handleWorkloadStream keeps a workload table patched over SSE until the
// client goes away.
func (s *server) handleWorkloadStream(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := s.hospitalParam(w, r)
	if !ok {
		return
	}

	sse := datastar.NewSSE(w, r)
	ticker := time.NewTicker(s.boardInterval)
	defer ticker.Stop()

	for {
		board, err := s.engine.Workloads(r.Context(), hospitalID)
		if err != nil {
			s.log.Warn("workload board refresh failed",
				zap.Int64("hospital_id", hospitalID),
				zap.Error(err),
			)
		} else if err := sse.PatchElements(renderBoard(board)); err != nil {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func renderBoard(board []models.DoctorWorkload) string {
	var sb strings.Builder
	sb.WriteString(`<table id="workload-board" class="stripes">`)
	sb.WriteString(`<thead><tr><th>Doctor</th><th>Minutes</th><th>Score</th><th>Status</th></tr></thead><tbody>`)
	for _, d := range board {
		status := "available"
		if d.OnBreak {
			status = "on break"
		}
		sb.WriteString(fmt.Sprintf(`<tr id="doctor-%d"><td>%s</td><td>%d</td><td>%.1f</td><td>%s</td></tr>`,
			d.DoctorID, html.EscapeString(d.Name), d.TotalMinutes, d.Score, status))
	}
	if len(board) == 0 {
		sb.WriteString(`<tr><td colspan="4">No active doctors</td></tr>`)
	}
	sb.WriteString(`</tbody></table>`)
	return sb.String()
}
