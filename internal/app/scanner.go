package app

import (
	"context"
	"time"

	"github.com/justyntemme/assetgrid/internal/catalog"
	"github.com/justyntemme/assetgrid/internal/debug"
	"github.com/justyntemme/assetgrid/internal/host"
	"github.com/justyntemme/assetgrid/internal/metrics"
)

type ScanRequest struct {
	Root  host.Directory
	Depth catalog.Depth
	Gen   int64 // Generation counter to drop stale responses
	// Rescan marks a refresh after a change on disk. Nobody waits for it
	// and it never supersedes a user ingestion.
	Rescan bool
}

type ScanResponse struct {
	Root     host.Directory
	Records  []catalog.Record
	Report   *catalog.ScanReport
	Err      error
	Gen      int64
	Rescan   bool
	Duration time.Duration
}

// Scanner traverses picked directories off the event loop. A scan always
// runs to completion or failure; there is no cancel request.
type Scanner struct {
	RequestChan  chan ScanRequest
	ResponseChan chan ScanResponse
}

func NewScanner() *Scanner {
	return &Scanner{
		RequestChan:  make(chan ScanRequest, 10),
		ResponseChan: make(chan ScanResponse, 10),
	}
}

// Start serves RequestChan until it is closed. ctx is only cancelled at
// process teardown.
func (s *Scanner) Start(ctx context.Context) {
	for req := range s.RequestChan {
		debug.Log(debug.APP, "Scan request: root=%q depth=%s gen=%d", req.Root.Name(), req.Depth, req.Gen)

		start := time.Now()
		records, report, err := catalog.Scan(ctx, req.Root, req.Depth)
		resp := ScanResponse{
			Root:     req.Root,
			Records:  records,
			Report:   report,
			Err:      err,
			Gen:      req.Gen,
			Rescan:   req.Rescan,
			Duration: time.Since(start),
		}

		nodeErrors := 0
		if report != nil {
			nodeErrors = len(report.Errors)
		}
		metrics.RecordScan(resp.Duration, nodeErrors)
		debug.Log(debug.APP, "Scan response: records=%d gen=%d err=%v took=%s",
			len(records), req.Gen, err, resp.Duration)
		s.ResponseChan <- resp
	}
	close(s.ResponseChan)
}
