package connector

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/cloudshuttle/cqlbulk/pkg/logger"
	"github.com/cloudshuttle/cqlbulk/pkg/pool"
	"github.com/cloudshuttle/cqlbulk/pkg/record"
)

// FileConfig configures a File connector.
type FileConfig struct {
	// URLs lists the resources to read or write, in the form
	// "file:///path" or the literal "stdin:///-" for standard input. A
	// ".gz" suffix is read/written transparently via
	// klauspost/compress/gzip.
	URLs []string
}

// File is the reference connector: a line-oriented reader/writer over
// local files or stdin, gzip-transparent, grounded on the teacher's CSV
// source connector's file-handling idiom but stripped to the narrow
// Connector boundary (spec.md §6.1). Each line is one record; the
// line's full text becomes both the record's single "line" field and
// its provenance SourceLine.
type File struct {
	cfg FileConfig
	log *zap.Logger

	mu     sync.Mutex
	opened []io.Closer
}

// NewFile constructs a File connector. Call Init before Read/Write.
func NewFile(cfg FileConfig) *File {
	return &File{cfg: cfg, log: logger.Get().With(zap.String("component", "connector.file"))}
}

// Init only checks that at least one URL is configured; files are
// opened lazily per-resource on Read/Write so that one bad path in a multi-resource run doesn't prevent the
// others from being attempted.
func (f *File) Init(ctx context.Context) error {
	if len(f.cfg.URLs) == 0 {
		return fmt.Errorf("file connector: no URLs configured")
	}
	return nil
}

// Close closes every file opened during this run.
func (f *File) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first error
	for _, c := range f.opened {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	f.opened = nil
	return first
}

func (f *File) track(c io.Closer) {
	f.mu.Lock()
	f.opened = append(f.opened, c)
	f.mu.Unlock()
}

// resourcePath strips the "file://" or "stdin://" scheme prefix a
// resource URL carries, leaving the plain filesystem path ("-" for
// stdin).
func resourcePath(url string) string {
	switch {
	case strings.HasPrefix(url, "file://"):
		return strings.TrimPrefix(url, "file://")
	case strings.HasPrefix(url, "stdin://"):
		return "-"
	default:
		return url
	}
}

func (f *File) openResourceReader(url string) (io.ReadCloser, error) {
	path := resourcePath(url)
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, err
		}
		return &gzipReadCloser{gz: gz, file: file}, nil
	}
	return file, nil
}

type gzipReadCloser struct {
	gz   *gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }
func (g *gzipReadCloser) Close() error {
	if err := g.gz.Close(); err != nil {
		g.file.Close()
		return err
	}
	return g.file.Close()
}

func (f *File) openResourceWriter(url string) (io.WriteCloser, error) {
	path := resourcePath(url)
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(file)
		return &gzipWriteCloser{gz: gz, file: file}, nil
	}
	return file, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type gzipWriteCloser struct {
	gz   *gzip.Writer
	file *os.File
}

func (g *gzipWriteCloser) Write(p []byte) (int, error) { return g.gz.Write(p) }
func (g *gzipWriteCloser) Close() error {
	if err := g.gz.Close(); err != nil {
		g.file.Close()
		return err
	}
	return g.file.Close()
}

// readResource streams one resource's lines as ok records (or error
// records, for lines too long for the scanner's buffer) into out. It
// does not close out; the caller does once the resource is exhausted.
func (f *File) readResource(ctx context.Context, url string, out chan<- *record.Record) error {
	rc, err := f.openResourceReader(url)
	if err != nil {
		return err
	}
	f.track(rc)

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var index int64
	for scanner.Scan() {
		index++
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Text()
		pos := record.Position{Resource: url, Index: index, SourceLine: line}
		rec := record.New(pos, []record.Field{{Name: "line", Type: record.FieldTypeString, Value: line}})
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		index++
		pos := record.Position{Resource: url, Index: index}
		select {
		case out <- record.NewError(pos, fmt.Errorf("connector: %w", err)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Read returns a single flat stream across every configured resource,
// read concurrently with no ordering guarantee between resources
// (spec.md §5, §6.1).
func (f *File) Read(ctx context.Context) (<-chan *record.Record, error) {
	out := make(chan *record.Record, 256)
	var wg sync.WaitGroup
	for _, url := range f.cfg.URLs {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			if err := f.readResource(ctx, url, out); err != nil && ctx.Err() == nil {
				f.log.Error("resource read failed", zap.String("resource", url), zap.Error(err))
			}
		}(url)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

// ReadByResource returns one ResourceStream per configured resource,
// each read sequentially within itself; used by the thread-per-
// resource scheduling regime (spec.md §4.5).
func (f *File) ReadByResource(ctx context.Context) (<-chan ResourceStream, error) {
	out := make(chan ResourceStream, len(f.cfg.URLs))
	go func() {
		defer close(out)
		for _, url := range f.cfg.URLs {
			records := make(chan *record.Record, 256)
			stream := ResourceStream{Resource: url, Records: records}
			select {
			case out <- stream:
			case <-ctx.Done():
				close(records)
				return
			}
			if err := f.readResource(ctx, url, records); err != nil && ctx.Err() == nil {
				f.log.Error("resource read failed", zap.String("resource", url), zap.Error(err))
			}
			close(records)
		}
	}()
	return out, nil
}

// Write drains records onto the connector's configured resource (the
// first URL; multi-resource unload targets are a connector-specific
// concern outside this reference implementation's scope), one line per
// record's "line" field if present, or a tab-joined rendering of all
// fields otherwise.
func (f *File) Write(ctx context.Context, records <-chan *record.Record) error {
	if len(f.cfg.URLs) == 0 {
		return fmt.Errorf("file connector: no URLs configured")
	}
	wc, err := f.openResourceWriter(f.cfg.URLs[0])
	if err != nil {
		return err
	}
	f.track(wc)

	w := bufio.NewWriter(wc)
	defer w.Flush()

	for {
		select {
		case rec, ok := <-records:
			if !ok {
				return w.Flush()
			}
			if _, err := w.WriteString(renderRecord(rec)); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func renderRecord(rec *record.Record) string {
	if f, ok := rec.Field("line"); ok {
		if s, ok := f.Value.(string); ok {
			return s
		}
	}
	parts := pool.GetStringSlice()
	for _, field := range rec.Fields {
		parts = append(parts, fmt.Sprintf("%v", field.Value))
	}
	line := strings.Join(parts, "\t")
	pool.PutStringSlice(parts)
	return line
}

// EstimatedResourceCount reports the configured resource count; File
// never returns 0 ("unknown") since its resource set is always known
// up front from configuration.
func (f *File) EstimatedResourceCount() int {
	return len(f.cfg.URLs)
}

// Supports reports that File produces indexed records (lines carry a
// stable 1-based position) but not field-mapped ones (each line is one
// opaque "line" field; naming individual CQL-bound columns is the
// mapping layer's job, out of scope here per spec.md §1).
func (f *File) Supports(feature Feature) bool {
	return feature == FeatureIndexedRecords
}

// RecordMetadata describes File's single-field record shape.
func (f *File) RecordMetadata() Metadata {
	return Metadata{Fields: []FieldMetadata{{Name: "line", Type: record.FieldTypeString}}}
}
