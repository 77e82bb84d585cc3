// Package scraper runs the extraction engine end to end.
//
// A Scraper launches one browser, establishes an authenticated session and
// then works through an ordered account list: post discovery on the
// account's grid, followed by detail extraction for every discovered post.
// Per-post failures are recorded in the result and never end the run.
// Launch and login failures do, as does cancellation or a rate-limit
// suspicion under the stop policy.
//
// Usage:
//
//	sc, err := scraper.New(cfg, scraper.Deps{
//	    Launch:  scraper.ChromeLauncher(cfg, nil, log),
//	    Cookies: store,
//	    Logger:  log,
//	})
//	if err != nil {
//	    return err
//	}
//	result, err := sc.Run(ctx, []string{"nasa", "esa"}, scraper.RunOptions{})
//
// Progress is checkpointed after each account so an interrupted run can be
// continued with RunOptions.Resume.
package scraper
