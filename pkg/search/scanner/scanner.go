// Package scanner implements the File Scanner (spec §4.C): it walks the
// search roots honoring ignore rules, skips binary and oversized files, and
// streams per-line regex hits to the Block Extractor.
package scanner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"sync"
)

// maxFileBytes is the default size cap past which a file is skipped
// outright rather than scanned line by line (spec §5 resource model).
const maxFileBytes = 5 * 1024 * 1024

// binarySniffLen is how many leading bytes are inspected for a NUL byte
// when deciding whether a file is binary.
const binarySniffLen = 8192

// Hit is one matching line discovered in a file: the 1-based line number
// and the set of query term indexes (into the caller's term list) that
// matched somewhere on that line.
type Hit struct {
	Line  int
	Terms map[int]struct{}
}

// FileHits groups every Hit found in a single file, in ascending line
// order, along with the file's full contents so the extractor never has to
// re-read it.
type FileHits struct {
	Path   string
	Hits   []Hit
	Source []byte
}

// Options configures a Scan.
type Options struct {
	// Ignore holds additional user-supplied glob patterns, layered over
	// the default ignore set and any discovered .gitignore files.
	Ignore []string

	// FilesOnly requests a single synthetic hit at line 0 per matching
	// file, instead of per-line hits (spec §4.C "files_only mode").
	FilesOnly bool

	// Concurrency bounds the number of files read and matched in
	// parallel. Zero selects runtime.GOMAXPROCS(0).
	Concurrency int
}

// Scan walks roots, honoring ignore rules, and returns one FileHits per
// file that matched combined, sorted by path for determinism (spec §8,
// "identical results across repeated identical runs").
//
// combined is a single alternation pattern used to cheaply test whether a
// line matches at all; termPatterns are re-checked individually per line to
// build each Hit's term index set.
func Scan(ctx context.Context, roots []string, combined *regexp.Regexp, termPatterns []*regexp.Regexp, opts Options) ([]FileHits, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	paths, err := discoverFiles(ctx, roots, opts.Ignore)
	if err != nil {
		return nil, err
	}

	jobs := make(chan string)
	results := make(chan FileHits, concurrency)

	var wg sync.WaitGroup

	for range concurrency {
		wg.Add(1)

		go func() {
			defer wg.Done()
			scanWorker(ctx, jobs, results, combined, termPatterns, opts.FilesOnly)
		}()
	}

	go func() {
		defer close(jobs)

		for _, p := range paths {
			select {
			case <-ctx.Done():
				return
			case jobs <- p:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]FileHits, 0, len(paths))
	for fh := range results {
		out = append(out, fh)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return out, nil
}

func scanWorker(ctx context.Context, jobs <-chan string, results chan<- FileHits, combined *regexp.Regexp, termPatterns []*regexp.Regexp, filesOnly bool) {
	for path := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fh, ok, err := scanFile(path, combined, termPatterns, filesOnly)
		if err != nil || !ok {
			continue
		}

		results <- fh
	}
}

// discoverFiles walks roots depth-first and returns every candidate file
// path, pruning ignored directories before descending into them.
func discoverFiles(ctx context.Context, roots []string, ignore []string) ([]string, error) {
	is := newIgnoreSet(ignore)

	var paths []string

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr // unreadable entries are skipped, not fatal
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if d.IsDir() {
				is.loadGitignore(path)

				if path != root && is.isDirIgnored(path, d.Name()) {
					return filepath.SkipDir
				}

				return nil
			}

			if !d.Type().IsRegular() {
				return nil
			}

			if is.isFileIgnored(path, d.Name()) {
				return nil
			}

			paths = append(paths, path)

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	return paths, nil
}

// scanFile reads path and matches it against combined, returning ok=false
// when the file is binary, oversized, unreadable, or has no matching line.
func scanFile(path string, combined *regexp.Regexp, termPatterns []*regexp.Regexp, filesOnly bool) (FileHits, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileHits{}, false, err //nolint:wrapcheck // caller discards the error
	}

	if info.Size() > maxFileBytes {
		return FileHits{}, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return FileHits{}, false, err //nolint:wrapcheck // caller discards the error
	}

	if looksBinary(data) {
		return FileHits{}, false, nil
	}

	if filesOnly {
		if !combined.Match(data) {
			return FileHits{}, false, nil
		}

		return FileHits{Path: path, Hits: []Hit{{Line: 0, Terms: allTermIndexes(termPatterns)}}, Source: data}, true, nil
	}

	var hits []Hit

	lineNo := 0

	scan := bufio.NewScanner(bytes.NewReader(data))
	scan.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scan.Scan() {
		lineNo++

		line := scan.Bytes()
		if !combined.Match(line) {
			continue
		}

		terms := make(map[int]struct{})

		for idx, tp := range termPatterns {
			if tp.Match(line) {
				terms[idx] = struct{}{}
			}
		}

		hits = append(hits, Hit{Line: lineNo, Terms: terms})
	}

	if len(hits) == 0 {
		return FileHits{}, false, nil
	}

	return FileHits{Path: path, Hits: hits, Source: data}, true, nil
}

func allTermIndexes(termPatterns []*regexp.Regexp) map[int]struct{} {
	out := make(map[int]struct{}, len(termPatterns))
	for i := range termPatterns {
		out[i] = struct{}{}
	}

	return out
}

// looksBinary applies the conventional NUL-byte-in-the-prefix heuristic.
func looksBinary(data []byte) bool {
	n := len(data)
	if n > binarySniffLen {
		n = binarySniffLen
	}

	return bytes.IndexByte(data[:n], 0) != -1
}
