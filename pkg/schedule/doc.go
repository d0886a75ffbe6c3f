// Package schedule runs recurring tasks on cron expressions.
//
// Events can be guarded by a cache-backed mutex: WithoutOverlapping skips a
// tick while the previous run is still going, and OnOneServer lets a single
// instance claim each tick when several servers run the same schedule.
//
//	s := schedule.New(
//		schedule.WithLocker(cache.NewRedisLocker(client)),
//		schedule.WithLogger(log),
//	)
//	ev, _ := s.Add("prune-sessions", "@every 15m", prune)
//	ev.WithoutOverlapping(time.Hour).OnOneServer()
//
//	app := keel.New(keel.WithStartupHook(s.StartFunc()), keel.WithShutdownHook(s.Shutdown()))
package schedule
