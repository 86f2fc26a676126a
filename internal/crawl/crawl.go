package crawl

import (
	"context"
	"fmt"

	"github.com/AlfredBerg/docs-table-scraper/internal/browser"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// Crawl processes the tables and views subtrees of the job's section. A
// failed subtree does not stop the other one, and every browser session
// the job starts is closed before Crawl returns.
func (j *Job) Crawl(ctx context.Context) Report {
	log := j.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("section", j.Target.Name))
	rep := Report{Section: j.Target.Name}

	var session browser.Session
	closeSession := func() {
		if session == nil {
			return
		}
		if err := session.Close(); err != nil {
			log.Warn("failed closing browser", zap.Error(err))
		}
		session = nil
	}
	defer closeSession()

	subtrees := j.Target.Subtrees()
	if j.Target.TablesID == "" {
		log.Info("skipping tables, no dropdown configured")
	}
	if j.Target.ViewsID == "" {
		log.Info("skipping views, no dropdown configured")
	}

	for _, st := range subtrees {
		if ctx.Err() != nil {
			rep.Failures = append(rep.Failures, fmt.Errorf("%s: %w", st, ctx.Err()))
			continue
		}
		if session == nil {
			s, err := j.Launcher.Launch(ctx)
			if err != nil {
				rep.Err = fmt.Errorf("starting browser: %w", err)
				log.Error("failed starting browser", zap.Error(err))
				return rep
			}
			session = s
			if err := session.Open(ctx); err != nil {
				rep.Err = fmt.Errorf("opening start page: %w", err)
				log.Error("failed opening start page", zap.Error(err))
				return rep
			}
		}

		log.Info("processing subtree", zap.Stringer("subtree", st))
		n, err := j.subtree(ctx, session, st, log)
		rep.Pages += n
		if err != nil {
			log.Error("failed processing subtree", zap.Stringer("subtree", st), zap.Int("pages", n), zap.Error(err))
			rep.Failures = append(rep.Failures, err)
			if j.RecycleSession {
				log.Info("recycling browser session")
				closeSession()
			}
			continue
		}
		log.Info("finished subtree", zap.Stringer("subtree", st), zap.Int("pages", n))
	}
	return rep
}

// subtree runs the navigator, turning a panic into an error so one
// misbehaving page cannot take down the worker.
func (j *Job) subtree(ctx context.Context, page browser.Page, st Subtree, log *zap.Logger) (n int, err error) {
	nav := &Navigator{
		Page:          page,
		Section:       j.Target.Name,
		Retry:         j.Retry,
		Writer:        j.Writer,
		OutputHandler: j.OutputHandler,
		Log:           log,
	}

	var pc panics.Catcher
	pc.Try(func() {
		n, err = nav.Run(ctx, st)
	})
	if r := pc.Recovered(); r != nil {
		return n, fmt.Errorf("%s: %w", st, r.AsError())
	}
	return n, err
}
