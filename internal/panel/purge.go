package panel

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const purgeNameSample = 10

// PurgePredicate selects users for batch deletion.
type PurgePredicate func(u *User) bool

// ExpiredUsers matches users whose expiry has passed.
func ExpiredUsers(now int64) PurgePredicate {
	return func(u *User) bool { return u.Expired(now) }
}

// ExhaustedUsers matches users who consumed their data limit.
func ExhaustedUsers() PurgePredicate {
	return func(u *User) bool { return u.Exhausted() }
}

// PurgeReport summarizes one batch deletion run. Partial is set when the
// run stopped before seeing every user; the operator must be told the
// batch did not cover the whole panel.
type PurgeReport struct {
	Deleted int
	Skipped int      // matching users whose individual delete failed
	Names   []string // first few deleted usernames
	Partial bool
	Err     error
}

// Purge deletes every user matching the predicate. Matching usernames are
// collected across all pages before the first delete: deleting while
// paginating would shift later users into offsets already visited and
// silently skip them. A single per-user delete failure is logged and
// skipped. A page fetch failure or context timeout aborts the run and the
// report is marked partial with whatever completed so far.
func Purge(ctx context.Context, client *Client, pageSize int, pred PurgePredicate, logger *zap.Logger) PurgeReport {
	if pageSize <= 0 {
		pageSize = 100
	}

	var report PurgeReport

	var matches []string
	for offset := 0; ; offset += pageSize {
		users, err := client.ListUsers(ctx, offset, pageSize)
		if err != nil {
			report.Partial = true
			report.Err = err
			return report
		}
		if len(users) == 0 {
			break
		}
		for i := range users {
			if pred(&users[i]) {
				matches = append(matches, users[i].Username)
			}
		}
	}

	for _, username := range matches {
		if err := ctx.Err(); err != nil {
			report.Partial = true
			report.Err = err
			return report
		}
		if err := client.DeleteUser(ctx, username); err != nil {
			report.Skipped++
			logger.Warn("purge: user delete failed, skipping",
				zap.String("username", username), zap.Error(err))
			continue
		}
		report.Deleted++
		if len(report.Names) < purgeNameSample {
			report.Names = append(report.Names, username)
		}
	}
	return report
}

// PurgeTimeout bounds one whole purge run.
func PurgeTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 2 * time.Minute
	}
	return context.WithTimeout(parent, d)
}
