// Package headless runs a pilot task without user interaction.
//
// The executor wraps an agent run for scripts, cron jobs and CI:
//
// - Console progress rendered from agent events
// - An optional run timeout
// - Artifacts (run.yaml, summary.md, metrics.json) for auditing a run
//
// Example usage:
//
//	cfg := headless.DefaultConfig()
//	cfg.Task = "open example.com and report the page heading"
//	cfg.Artifacts.Enabled = true
//	cfg.Artifacts.OutputDir = "./runs/latest"
//
//	exec, _ := headless.NewExecutor(cfg, os.Stdout)
//	ag, _ := agent.New(provider, agent.WithTools(gateway), agent.WithEventSink(exec.Sink()))
//	res, err := exec.Run(ctx, ag)
//	os.Exit(headless.ExitCode(res))
//
// Task files are YAML and may carry everything Config holds:
//
//	task: add the cheapest kettle to the cart
//	timeout: 5m
//	logging:
//	  verbosity: verbose
package headless
