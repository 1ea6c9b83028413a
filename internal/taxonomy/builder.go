// Package taxonomy downloads the NCBI taxonomy dump and serves lookups from
// the local taxa.sqlite it is built into.
package taxonomy

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"card_live_dashboard/internal/db"
)

const DefaultURL = "https://ftp.ncbi.nlm.nih.gov/pub/taxonomy/taxdump.tar.gz"

const progressEvery = 10 << 20

// Builder fetches taxdump.tar.gz and converts it into a taxonomy database.
// Each Build makes exactly one download attempt.
type Builder struct {
	URL            string
	Client         *http.Client
	Logger         *slog.Logger
	VerifyChecksum bool
}

func NewBuilder(url string, logger *slog.Logger) *Builder {
	if url == "" {
		url = DefaultURL
	}
	return &Builder{
		URL:            url,
		Client:         &http.Client{},
		Logger:         logger,
		VerifyChecksum: true,
	}
}

// Build writes the database to path. The file only appears once it is
// complete, so a failed build leaves nothing behind for a later run to trip on.
func (b *Builder) Build(ctx context.Context, path string) error {
	logger := b.logger()
	dir := filepath.Dir(path)

	archive, err := os.CreateTemp(dir, "taxdump-*.tar.gz")
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	defer func() {
		_ = archive.Close()
		_ = os.Remove(archive.Name())
	}()

	logger.Info("downloading NCBI taxonomy dump", "url", b.URL)
	sum, size, err := b.download(ctx, archive)
	if err != nil {
		return fmt.Errorf("download taxonomy dump: %w", err)
	}
	logger.Info("download complete", "size", humanize.Bytes(uint64(size)))

	if b.VerifyChecksum {
		expected, err := b.fetchChecksum(ctx)
		if err != nil {
			return fmt.Errorf("fetch checksum: %w", err)
		}
		if !strings.EqualFold(expected, sum) {
			return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, sum)
		}
		logger.Debug("checksum verified", "md5", sum)
	}

	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind download: %w", err)
	}
	logger.Info("parsing taxonomy dump")
	d, err := readArchive(archive)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	logger.Info("building taxonomy database", "path", path, "nodes", len(d.parents), "synonyms", len(d.synonyms))
	if err := writeDatabase(tmp, d); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("install taxonomy database: %w", err)
	}
	logger.Info("taxonomy database ready", "path", path)
	return nil
}

func writeDatabase(path string, d *dump) error {
	w, err := db.Create(path)
	if err != nil {
		return err
	}
	if err := d.write(w); err != nil {
		_ = w.Abort()
		return err
	}
	return w.Commit()
}

func (b *Builder) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return resp, nil
}

func (b *Builder) download(ctx context.Context, out io.Writer) (string, int64, error) {
	resp, err := b.get(ctx, b.URL)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	h := md5.New()
	progress := &progressWriter{logger: b.logger(), total: resp.ContentLength}
	n, err := io.Copy(io.MultiWriter(out, h, progress), resp.Body)
	if err != nil {
		return "", n, err
	}
	return hexSum(h), n, nil
}

// fetchChecksum reads the "<md5>  taxdump.tar.gz" file NCBI publishes next
// to the archive.
func (b *Builder) fetchChecksum(ctx context.Context) (string, error) {
	resp, err := b.get(ctx, b.URL+".md5")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return "", errors.New("empty checksum file")
	}
	return fields[0], nil
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

type progressWriter struct {
	logger  *slog.Logger
	total   int64
	written int64
	next    int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.written >= p.next {
		attrs := []any{"downloaded", humanize.Bytes(uint64(p.written))}
		if p.total > 0 {
			attrs = append(attrs, "total", humanize.Bytes(uint64(p.total)))
		}
		p.logger.Info("download progress", attrs...)
		p.next = p.written + progressEvery
	}
	return len(b), nil
}
