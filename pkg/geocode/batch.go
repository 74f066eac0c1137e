package geocode

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchOptions configures the chunked batch run.
type BatchOptions struct {
	ChunkSize    int           // addresses per request (default 1000, Census cap 10000)
	Concurrency  int           // parallel in-flight chunks (default 1)
	ChunkTimeout time.Duration // per-chunk deadline; 0 = none
}

// ChunkFailure records one chunk whose request failed. The chunk's rows
// are absent from the combined output; the failure is surfaced, not fatal.
type ChunkFailure struct {
	Index   int    // chunk index in original order
	FirstID string // first row ID in the chunk
	LastID  string // last row ID in the chunk
	Rows    int    // rows the chunk would have submitted
	Err     error
}

// BatchSummary reports what happened to every input row of a batch run.
// Excluded counts rows never submitted (incomplete address); a row that
// was submitted but unmatched appears in the results with No_Match.
type BatchSummary struct {
	Chunks    int
	Submitted int
	Excluded  int
	Failures  []ChunkFailure
}

// Failed reports whether every chunk failed, the only condition treated
// as a fatal batch error.
func (s BatchSummary) Failed() bool {
	return s.Chunks > 0 && len(s.Failures) == s.Chunks
}

// Chunk is one contiguous, non-overlapping slice of the full address list.
// It exists only for the duration of one request/response cycle.
type Chunk struct {
	Index int
	Addrs []AddressInput
}

// SplitChunks partitions addrs into ceil(len/size) contiguous chunks in
// original order, covering every index exactly once.
func SplitChunks(addrs []AddressInput, size int) []Chunk {
	if size <= 0 {
		size = 1000
	}
	var chunks []Chunk
	for start := 0; start < len(addrs); start += size {
		end := min(start+size, len(addrs))
		chunks = append(chunks, Chunk{Index: len(chunks), Addrs: addrs[start:end]})
	}
	return chunks
}

// BatchGeocodeAll splits the full address list into bounded chunks, submits
// each through the client, and reassembles per-chunk results by chunk index
// so output order is stable regardless of completion order.
//
// Rows missing a required address component are excluded from their chunk
// before submission and counted in the summary. A failed chunk drops its
// rows from the output with a warning; processing of other chunks continues.
// The returned error is non-nil only when every chunk fails.
func BatchGeocodeAll(ctx context.Context, client Client, addrs []AddressInput, opts BatchOptions) ([]Result, BatchSummary, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	log := zap.L().With(zap.String("component", "geocode.batch"))

	chunks := SplitChunks(addrs, opts.ChunkSize)
	summary := BatchSummary{Chunks: len(chunks)}

	// Indexed by chunk number so concurrent completion keeps original
	// order at assembly time.
	perChunk := make([][]Result, len(chunks))
	failures := make([]*ChunkFailure, len(chunks))
	excluded := make([]int, len(chunks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for _, chunk := range chunks {
		g.Go(func() error {
			submit := make([]AddressInput, 0, len(chunk.Addrs))
			for _, a := range chunk.Addrs {
				if !a.Complete() {
					excluded[chunk.Index]++
					continue
				}
				submit = append(submit, a)
			}
			if len(submit) == 0 {
				return nil
			}

			chunkCtx := gCtx
			if opts.ChunkTimeout > 0 {
				var cancel context.CancelFunc
				chunkCtx, cancel = context.WithTimeout(gCtx, opts.ChunkTimeout)
				defer cancel()
			}

			results, err := client.BatchGeocode(chunkCtx, submit)
			if err != nil {
				// A timed-out or failed chunk never aborts its siblings.
				failures[chunk.Index] = &ChunkFailure{
					Index:   chunk.Index,
					FirstID: submit[0].ID,
					LastID:  submit[len(submit)-1].ID,
					Rows:    len(submit),
					Err:     err,
				}
				log.Warn("chunk failed, rows omitted from output",
					zap.Int("chunk", chunk.Index),
					zap.String("first_id", submit[0].ID),
					zap.String("last_id", submit[len(submit)-1].ID),
					zap.Int("rows", len(submit)),
					zap.Error(err),
				)
				return nil
			}
			perChunk[chunk.Index] = results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, summary, err
	}

	var combined []Result
	for i := range chunks {
		combined = append(combined, perChunk[i]...)
		summary.Submitted += len(perChunk[i])
		summary.Excluded += excluded[i]
		if failures[i] != nil {
			// Failed chunks still submitted their rows; the rows are
			// only missing from the output.
			summary.Submitted += failures[i].Rows
			summary.Failures = append(summary.Failures, *failures[i])
		}
	}

	if summary.Failed() {
		last := summary.Failures[len(summary.Failures)-1]
		return nil, summary, last.Err
	}
	return combined, summary, nil
}
