package filemanager

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conneroisu/tplsync/internal/confdoc"
	serrors "github.com/conneroisu/tplsync/internal/errors"
	"github.com/conneroisu/tplsync/internal/logging"
	"github.com/conneroisu/tplsync/internal/patterns"
)

// Report summarizes a full sync pass.
type Report struct {
	Files   int
	Copied  int
	Merged  int
	Skipped int
	Errors  []error
}

func (r *Report) record(ok bool, err error, merged bool) {
	switch {
	case ok && merged:
		r.Merged++
	case ok:
		r.Copied++
	default:
		r.Skipped++
	}
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

// SyncOne brings one record into the build. A module configuration fragment
// whose destination already exists is merged into it; anything else is
// copied. It reports false when nothing was written, with the per-file
// error explaining why.
func (m *Manager) SyncOne(rec FileRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, _, err := m.syncOne(rec)
	return ok, err
}

// SyncPath syncs the record indexed under path by the last enumeration.
// Untracked paths are ignored.
func (m *Manager) SyncPath(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.index.Get(path)
	if !ok {
		return false, nil
	}
	ok, _, err := m.syncOne(rec)
	return ok, err
}

func (m *Manager) syncOne(rec FileRecord) (ok, merged bool, err error) {
	dest := m.destPath(rec)

	if rec.IsModuleConfig() && exists(dest) {
		ok, err = m.mergeInto(dest, rec)
		return ok, true, err
	}

	ok, err = m.copyFile(rec.AbsPath, dest)
	return ok, false, err
}

// SyncAll enumerates and brings every record into the build: plain files
// first, then template configuration copied as-is, then module fragments
// merged in module discovery order.
func (m *Manager) SyncAll(flags patterns.Flags) *Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := context.Background()
	op := logging.StartOperation(m.logger, "sync_all")

	ix := m.enumerate(flags)
	report := &Report{Files: ix.Len()}
	report.Errors = append(report.Errors, ix.Errors...)

	for _, rec := range orderForSync(ix) {
		ok, merged, err := m.syncOne(rec)
		report.record(ok, err, merged)
	}

	op.End(ctx,
		"files", report.Files,
		"copied", report.Copied,
		"merged", report.Merged,
		"skipped", report.Skipped,
		"errors", len(report.Errors))
	return report
}

// orderForSync returns plain files in match order, then template
// configuration, then module configuration grouped by module discovery order.
func orderForSync(ix *Index) []FileRecord {
	var plain, rootConf []FileRecord
	byModule := make(map[string][]FileRecord)

	for _, rec := range ix.Records() {
		switch {
		case !rec.IsConfig():
			plain = append(plain, rec)
		case rec.Module == "":
			rootConf = append(rootConf, rec)
		default:
			byModule[rec.Module] = append(byModule[rec.Module], rec)
		}
	}

	out := append(plain, rootConf...)
	if ix.Modules != nil {
		for _, name := range ix.Modules.Names() {
			out = append(out, byModule[name]...)
		}
	}
	return out
}

// contributors returns every configuration record that lands on relPath,
// the template's own first and then modules in discovery order.
func contributors(ix *Index, relPath string) []FileRecord {
	var matching []FileRecord
	for _, rec := range orderForSync(ix) {
		if rec.IsConfig() && rec.RelPath == relPath {
			matching = append(matching, rec)
		}
	}
	return matching
}

// RebuildConfig regenerates the build configuration document fed by the
// source configuration at path. Merging only adds values, so the build
// document is deleted and the template copy plus every module merge is
// replayed.
func (m *Manager) RebuildConfig(path string, flags patterns.Flags) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.index.Get(path)
	if !ok {
		rec, ok = m.enumerate(flags).Get(path)
		if !ok {
			return nil
		}
	}
	return m.rebuildRel(rec.RelPath)
}

func (m *Manager) rebuildRel(relPath string) error {
	ctx := context.Background()
	dest := filepath.Join(m.buildDir, relPath)

	if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return serrors.WrapIO(err, serrors.ErrCodeDeleteFailed, "cannot remove build configuration", dest)
	}

	m.logger.Info(ctx, "Rebuilding configuration", "path", relPath)

	collector := serrors.NewCollector()
	for _, rec := range contributors(m.index, relPath) {
		_, _, err := m.syncOne(rec)
		collector.Add(err)
	}
	return collector.Join()
}

// Remove deletes the build counterparts of a removed source file, or of
// every indexed file below a removed directory. When other sources still land
// on the same build path, that path is regenerated from them instead:
// configuration is rebuilt, plain files are re-copied. Paths the last
// enumeration never indexed leave the build untouched.
func (m *Manager) Remove(path string, flags patterns.Flags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx := context.Background()

	removed := m.index.Under(path)
	if len(removed) == 0 {
		m.logger.Debug(ctx, "Ignoring removal of untracked path", "path", path)
		return nil
	}

	ix := m.enumerate(flags)
	collector := serrors.NewCollector()
	rebuilt := make(map[string]bool)
	for _, rec := range removed {
		if rebuilt[rec.RelPath] {
			continue
		}
		rebuilt[rec.RelPath] = true
		collector.Add(m.removeRecord(ctx, ix, rec))
	}
	return collector.Join()
}

func (m *Manager) removeRecord(ctx context.Context, ix *Index, rec FileRecord) error {
	if remaining := sameRel(ix, rec.RelPath); len(remaining) > 0 {
		if rec.IsConfig() {
			return m.rebuildRel(rec.RelPath)
		}
		_, _, err := m.syncOne(remaining[len(remaining)-1])
		return err
	}

	dest := m.destPath(rec)
	if protected(rec.RelPath) || !within(m.buildDir, dest) || dest == m.buildDir {
		return nil
	}
	m.logger.Info(ctx, "Removing file", "path", rec.RelPath)
	if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		se := serrors.WrapIO(err, serrors.ErrCodeDeleteFailed, "cannot remove build file", dest)
		m.handler.Handle(ctx, se)
		return se
	}
	return nil
}

func sameRel(ix *Index, relPath string) []FileRecord {
	var out []FileRecord
	for _, rec := range ix.Records() {
		if rec.RelPath == relPath {
			out = append(out, rec)
		}
	}
	return out
}

// mergeInto merges the fragment at rec into the build document at dest.
// Nothing is written unless both documents parse.
func (m *Manager) mergeInto(dest string, rec FileRecord) (bool, error) {
	ctx := context.Background()

	authoritative, err := confdoc.ReadFile(dest)
	if err != nil {
		var se *serrors.SyncError
		if errors.Is(err, fs.ErrNotExist) {
			se = serrors.ErrConfMissing(dest, err)
		} else {
			se = serrors.ErrConfInvalid(dest, err)
		}
		se.WithModule(rec.Module)
		m.handler.Handle(ctx, se)
		return false, se
	}

	incoming, err := confdoc.ReadFile(rec.AbsPath)
	if err != nil {
		se := serrors.ErrConfInvalid(rec.AbsPath, err).WithModule(rec.Module)
		m.handler.Handle(ctx, se)
		return false, se
	}

	m.logger.Info(ctx, "Merging configuration", "path", rec.RelPath, "module", rec.Module)
	merged, trace := m.merger.Merge(authoritative, incoming)
	m.logger.Debug(ctx, "Merge trace\n"+trace.String(), "module", rec.Module)
	for _, skipped := range trace.Skipped() {
		m.handler.Handle(ctx, skipped)
	}

	if err := confdoc.WriteFile(dest, merged); err != nil {
		se := serrors.WrapMerge(err, serrors.ErrCodeConfWrite, "cannot write merged configuration", dest, rec.Module)
		m.handler.Handle(ctx, se)
		return false, se
	}
	return true, nil
}

// copyFile copies src to dest, following symbolic links so the linked
// content is materialized. It reports false when src is missing or not a
// regular file.
func (m *Manager) copyFile(src, dest string) (bool, error) {
	ctx := context.Background()

	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, serrors.ErrSourceMissing(src)
		}
		se := serrors.WrapCopy(err, src)
		m.handler.Handle(ctx, se)
		return false, se
	}
	if !info.Mode().IsRegular() {
		return false, serrors.ErrNotRegularFile(src)
	}

	rel, _ := filepath.Rel(m.buildDir, dest)
	m.logger.Info(ctx, "Copying file", "to", rel)

	if err := writeCopy(src, dest, info.Mode().Perm()); err != nil {
		se := serrors.WrapCopy(err, src)
		m.handler.Handle(ctx, se)
		return false, se
	}
	return true, nil
}

func writeCopy(src, dest string, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".copy-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
