package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/tavs/internal/decoder"
	"github.com/desertthunder/tavs/internal/formatter"
	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/shared"
	"github.com/desertthunder/tavs/internal/sources"
	"github.com/desertthunder/tavs/internal/usernames"
)

// decodeJob carries one raw row to a decode worker.
type decodeJob struct {
	index int
	row   sources.Row
}

// decodeOutcome is the decoded form of one row.
type decodeOutcome struct {
	index  int
	record models.Model
	err    *decoder.RowError
}

// runImport performs the one-time flat-file import. Users are admitted
// first so tasks can resolve their owners, then tasks so log entries can
// resolve their parents. Users and tasks each commit in their own
// transaction; the import-completed flag commits with the final log entry
// batch, after the rejection report is safely on disk.
func (e *Engine) runImport(ctx context.Context, progress chan<- ProgressUpdate) (*models.ImportReport, string, error) {
	report := &models.ImportReport{
		Started: time.Now(),
		Source:  e.source.Name(),
	}
	e.logger.Info("starting import", "source", e.source.Name())

	userSet, err := e.openSet(ctx, progress, models.KindUser)
	if err != nil {
		return nil, "", err
	}
	owners, err := e.importUsers(ctx, progress, userSet, report)
	if err != nil {
		return nil, "", err
	}

	taskSet, err := e.openSet(ctx, progress, models.KindTask)
	if err != nil {
		return nil, "", err
	}
	validTasks, err := e.importTasks(ctx, progress, taskSet, owners, report)
	if err != nil {
		return nil, "", err
	}

	logSet, err := e.openSet(ctx, progress, models.KindLogEntry)
	if err != nil {
		return nil, "", err
	}
	entries, err := e.admitLogEntries(ctx, progress, logSet, owners, validTasks, report)
	if err != nil {
		return nil, "", err
	}

	report.Finished = time.Now()
	path, err := formatter.WriteReport(report, e.config.Report.Dir, e.config.Report.Format)
	if err != nil {
		return nil, "", fmt.Errorf("%w: report not written: %v", shared.ErrImportFailed, err)
	}

	if err := e.commitLogEntries(entries, path); err != nil {
		return nil, "", err
	}
	e.sendProgress(progress, importedKindUpdate(models.KindLogEntry, report.Logs))
	e.sendProgress(progress, reportUpdate(path, report))

	e.logger.Info("import committed",
		"users", report.Users.Admitted,
		"tasks", report.Tasks.Admitted,
		"logs", report.Logs.Admitted,
		"rejected", report.TotalRejected(),
		"report", path)
	return report, path, nil
}

// openSet reads one export file and announces the decode phase.
func (e *Engine) openSet(ctx context.Context, progress chan<- ProgressUpdate, kind models.Kind) (*sources.RowSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: import canceled: %v", shared.ErrImportFailed, err)
	}

	set, err := e.source.Open(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrImportFailed, err)
	}

	e.sendProgress(progress, decodingUpdate(kind, len(set.Rows), set.Name))
	return set, nil
}

// decodeRows decodes every row of the set on a worker pool and returns the
// outcomes in file order. Decoding is pure, so execution order does not
// matter; result order does, because admission is first-wins.
func (e *Engine) decodeRows(ctx context.Context, set *sources.RowSet) ([]decodeOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: import canceled: %v", shared.ErrImportFailed, err)
	}

	workers := e.config.Import.Workers
	if workers <= 0 {
		workers = 5
	}
	if workers > 10 {
		workers = 10
	}

	jobs := make(chan decodeJob, len(set.Rows))
	results := make(chan decodeOutcome, len(set.Rows))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go decodeWorker(&wg, set.Kind, jobs, results)
	}

	for i, row := range set.Rows {
		jobs <- decodeJob{index: i, row: row}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]decodeOutcome, len(set.Rows))
	for out := range results {
		outcomes[out.index] = out
	}
	return outcomes, nil
}

// decodeWorker decodes rows from the jobs channel until it closes.
func decodeWorker(wg *sync.WaitGroup, kind models.Kind, jobs <-chan decodeJob, results chan<- decodeOutcome) {
	defer wg.Done()

	for job := range jobs {
		record, rowErr := decoder.Decode(kind, job.row.Fields, job.row.Line)
		results <- decodeOutcome{index: job.index, record: record, err: rowErr}
	}
}

// rowReason formats a decode failure for the report. The line number is its
// own report column, so only the field and the violated constraint go here.
func rowReason(rowErr *decoder.RowError) string {
	if rowErr.Field == "" {
		return rowErr.Msg
	}
	return fmt.Sprintf("%s: %s", rowErr.Field, rowErr.Msg)
}

// importUsers admits and writes the user rows, then returns a map from
// normalized username to stored user ID for owner resolution.
//
// The enforcer is seeded from the store so a retry after an interrupted
// attempt does not reject its own rows: the first row whose exact spelling
// is already resident is counted admitted without a second insert, while a
// case variant of a resident name is a real collision.
func (e *Engine) importUsers(ctx context.Context, progress chan<- ProgressUpdate, set *sources.RowSet, report *models.ImportReport) (map[string]string, error) {
	report.Users.Total = len(set.Rows)

	outcomes, err := e.decodeRows(ctx, set)
	if err != nil {
		return nil, err
	}

	stored, err := e.users.Usernames()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrImportFailed, err)
	}

	enforcer := usernames.NewEnforcer(stored)
	resident := make(map[string]bool, len(stored))
	for _, name := range stored {
		resident[usernames.Normalize(name)] = true
	}

	total := len(set.Rows)
	toInsert := make([]*models.User, 0, total)

	for i, out := range outcomes {
		if out.err != nil {
			report.Reject(models.KindUser, out.err.Line, out.err.Value, rowReason(out.err))
			e.sendRowProgress(progress, rejectedRowUpdate(models.KindUser, i+1, total, rowReason(out.err)))
			continue
		}

		user := out.record.(*models.User)
		candidate := user.Username()
		key := usernames.Normalize(candidate)

		verdict := enforcer.Admit(candidate)
		switch {
		case verdict.Accepted:
			enforcer.Reserve(candidate)
			toInsert = append(toInsert, user)
			report.Users.Admitted++
			e.sendRowProgress(progress, importRowUpdate(models.KindUser, i+1, total, candidate))
		case errors.Is(verdict.Err, shared.ErrUsernameTaken) && resident[key]:
			// An earlier interrupted attempt already committed this row.
			resident[key] = false
			report.Users.Admitted++
			e.sendRowProgress(progress, importRowUpdate(models.KindUser, i+1, total, candidate))
		default:
			report.Reject(models.KindUser, set.Rows[i].Line, candidate, verdict.Reason())
			e.sendRowProgress(progress, rejectedRowUpdate(models.KindUser, i+1, total, verdict.Reason()))
		}
	}

	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: user batch: %v", shared.ErrImportFailed, err)
	}
	defer tx.Rollback()

	for _, user := range toInsert {
		if _, err := e.users.InsertTx(tx, user); err != nil {
			return nil, fmt.Errorf("%w: user %q: %v", shared.ErrImportFailed, user.Username(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: user batch: %v", shared.ErrImportFailed, err)
	}

	e.sendProgress(progress, importedKindUpdate(models.KindUser, report.Users))

	all, err := e.users.List(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrImportFailed, err)
	}
	owners := make(map[string]string, len(all))
	for _, u := range all {
		owners[usernames.Normalize(u.Username())] = u.ID()
	}
	return owners, nil
}

// importTasks admits and writes the task rows, then returns the set of task
// IDs present in the store for log entry resolution. A task whose owner was
// rejected, or never appeared, is rejected; the duplicate-tolerant insert
// absorbs rows an interrupted attempt already wrote.
func (e *Engine) importTasks(ctx context.Context, progress chan<- ProgressUpdate, set *sources.RowSet, owners map[string]string, report *models.ImportReport) (map[string]bool, error) {
	report.Tasks.Total = len(set.Rows)

	outcomes, err := e.decodeRows(ctx, set)
	if err != nil {
		return nil, err
	}

	total := len(set.Rows)
	seen := make(map[string]bool, total)
	toInsert := make([]*models.Task, 0, total)

	for i, out := range outcomes {
		if out.err != nil {
			report.Reject(models.KindTask, out.err.Line, out.err.Value, rowReason(out.err))
			e.sendRowProgress(progress, rejectedRowUpdate(models.KindTask, i+1, total, rowReason(out.err)))
			continue
		}

		task := out.record.(*models.Task)

		if seen[task.ID()] {
			reason := fmt.Sprintf("task %s appears more than once in the export", task.ID())
			report.Reject(models.KindTask, set.Rows[i].Line, task.ID(), reason)
			e.sendRowProgress(progress, rejectedRowUpdate(models.KindTask, i+1, total, reason))
			continue
		}

		ownerID, found := owners[usernames.Normalize(task.Username())]
		if !found {
			reason := fmt.Sprintf("owner %q was not imported", task.Username())
			report.Reject(models.KindTask, set.Rows[i].Line, task.ID(), reason)
			e.sendRowProgress(progress, rejectedRowUpdate(models.KindTask, i+1, total, reason))
			continue
		}

		task.SetUserID(ownerID)
		seen[task.ID()] = true
		toInsert = append(toInsert, task)
		report.Tasks.Admitted++
		e.sendRowProgress(progress, importRowUpdate(models.KindTask, i+1, total, task.ID()))
	}

	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: task batch: %v", shared.ErrImportFailed, err)
	}
	defer tx.Rollback()

	for _, task := range toInsert {
		if _, err := e.tasks.InsertTx(tx, task); err != nil {
			return nil, fmt.Errorf("%w: task %s: %v", shared.ErrImportFailed, task.ID(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: task batch: %v", shared.ErrImportFailed, err)
	}

	e.sendProgress(progress, importedKindUpdate(models.KindTask, report.Tasks))

	ids, err := e.tasks.IDs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrImportFailed, err)
	}
	valid := make(map[string]bool, len(ids))
	for _, id := range ids {
		valid[id] = true
	}
	return valid, nil
}

// admitLogEntries decides every log row without writing anything. Entries
// whose parent task never made it into the store, or whose author was
// rejected, are rejected. The admitted entries commit later alongside the
// import-completed flag.
func (e *Engine) admitLogEntries(ctx context.Context, progress chan<- ProgressUpdate, set *sources.RowSet, owners map[string]string, validTasks map[string]bool, report *models.ImportReport) ([]*models.LogEntry, error) {
	report.Logs.Total = len(set.Rows)

	outcomes, err := e.decodeRows(ctx, set)
	if err != nil {
		return nil, err
	}

	total := len(set.Rows)
	seen := make(map[string]bool, total)
	admitted := make([]*models.LogEntry, 0, total)

	for i, out := range outcomes {
		if out.err != nil {
			report.Reject(models.KindLogEntry, out.err.Line, out.err.Value, rowReason(out.err))
			e.sendRowProgress(progress, rejectedRowUpdate(models.KindLogEntry, i+1, total, rowReason(out.err)))
			continue
		}

		entry := out.record.(*models.LogEntry)

		if seen[entry.ID()] {
			reason := fmt.Sprintf("log entry %s appears more than once in the export", entry.ID())
			report.Reject(models.KindLogEntry, set.Rows[i].Line, entry.ID(), reason)
			e.sendRowProgress(progress, rejectedRowUpdate(models.KindLogEntry, i+1, total, reason))
			continue
		}

		if !validTasks[entry.TaskID()] {
			reason := fmt.Sprintf("task %s was not imported", entry.TaskID())
			report.Reject(models.KindLogEntry, set.Rows[i].Line, entry.ID(), reason)
			e.sendRowProgress(progress, rejectedRowUpdate(models.KindLogEntry, i+1, total, reason))
			continue
		}

		authorID, found := owners[usernames.Normalize(entry.Username())]
		if !found {
			reason := fmt.Sprintf("author %q was not imported", entry.Username())
			report.Reject(models.KindLogEntry, set.Rows[i].Line, entry.ID(), reason)
			e.sendRowProgress(progress, rejectedRowUpdate(models.KindLogEntry, i+1, total, reason))
			continue
		}

		entry.SetUserID(authorID)
		seen[entry.ID()] = true
		admitted = append(admitted, entry)
		report.Logs.Admitted++
		e.sendRowProgress(progress, importRowUpdate(models.KindLogEntry, i+1, total, entry.ID()))
	}

	return admitted, nil
}

// commitLogEntries writes the admitted log entries and the import-completed
// flag in one transaction. A failure here leaves the flag unset, so the
// next run decides the whole batch again; rows the failed attempt wrote are
// absorbed by the duplicate-tolerant insert.
func (e *Engine) commitLogEntries(entries []*models.LogEntry, reportPath string) error {
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: final batch: %v", shared.ErrImportFailed, err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		if _, err := e.logs.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("%w: log entry %s: %v", shared.ErrImportFailed, entry.ID(), err)
		}
	}

	if err := e.control.MarkImportedTx(tx, reportPath); err != nil {
		return fmt.Errorf("%w: completed flag: %v", shared.ErrImportFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: final batch: %v", shared.ErrImportFailed, err)
	}
	return nil
}
