// Command schedsim boots the scheduling core the way EPOS's System_Init
// assembles Traits -> Alarm -> Thread -> Scheduler once at start-of-day,
// replacing the teacher's cmd/inos-node libp2p bootstrap with an fx.App
// that wires config.Traits, a logger and a metrics registry into a
// running sched.Scheduler (which builds its own clock and interrupt
// controller), then spawns a small demo workload so the dispatch loop
// has something to schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eliasxyz/epos-sched/kernel/clock"
	"github.com/eliasxyz/epos-sched/kernel/config"
	"github.com/eliasxyz/epos-sched/kernel/criterion"
	"github.com/eliasxyz/epos-sched/kernel/metrics"
	"github.com/eliasxyz/epos-sched/kernel/rt"
	"github.com/eliasxyz/epos-sched/kernel/sched"
	"github.com/eliasxyz/epos-sched/kernel/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// cliFlags mirrors the subset of spec.md §6's Traits a real deployment
// would pick at build time; schedsim accepts them at the command line
// instead since there is no separate build step here.
type cliFlags struct {
	policy      string
	cpus        int
	quantum     time.Duration
	runFor      time.Duration
	metricsAddr string
}

func parseFlags() cliFlags {
	f := cliFlags{}
	flag.StringVar(&f.policy, "policy", "priority", "scheduling policy: fcfs|priority|roundrobin|edf|llf|gllf")
	flag.IntVar(&f.cpus, "cpus", 1, "number of CPUs")
	flag.DurationVar(&f.quantum, "quantum", 10*time.Millisecond, "round-robin/timer quantum")
	flag.DurationVar(&f.runFor, "run-for", 3*time.Second, "how long to run the demo workload before shutting down")
	flag.StringVar(&f.metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
	flag.Parse()
	return f
}

func policyFromFlag(name string) (config.Policy, error) {
	switch strings.ToLower(name) {
	case "fcfs":
		return config.PolicyFCFS, nil
	case "priority":
		return config.PolicyPriority, nil
	case "roundrobin", "round-robin", "rr":
		return config.PolicyRoundRobin, nil
	case "edf":
		return config.PolicyEDF, nil
	case "llf":
		return config.PolicyLLF, nil
	case "gllf":
		return config.PolicyGLLF, nil
	default:
		return 0, fmt.Errorf("schedsim: unknown policy %q", name)
	}
}

func newTraits(f cliFlags) (config.Traits, error) {
	policy, err := policyFromFlag(f.policy)
	if err != nil {
		return config.Traits{}, err
	}
	return config.New(
		config.WithPolicy(policy),
		config.WithQuantum(f.quantum),
		config.WithCPUs(f.cpus),
	), nil
}

func newLogger() *utils.Logger {
	return utils.DefaultLogger("schedsim")
}

func newMetricsRegistry() *metrics.Registry {
	return metrics.New(prometheus.DefaultRegisterer)
}

func newScheduler(traits config.Traits, logger *utils.Logger, reg *metrics.Registry) (*sched.Scheduler, error) {
	return sched.New(traits, 64,
		sched.WithLogger(logger),
		sched.WithMetrics(reg),
	)
}

// registerSchedulerLifecycle starts the dispatch loop on fx's OnStart and
// stops it on OnStop, the fx translation of spec.md §9's "a single
// scheduler object is initialized once at boot and torn down once at
// shutdown."
func registerSchedulerLifecycle(lc fx.Lifecycle, s *sched.Scheduler, logger *utils.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := s.Start(ctx); err != nil {
					logger.Error("dispatch loop exited", utils.Err(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return s.Shutdown(stopCtx)
		},
	})
}

// registerMetricsServer exposes /metrics over HTTP, grounded on the
// promhttp.Handler pattern the pack's monitoring packages use
// (ollama-distributed's pkg/monitoring/prometheus.go).
func registerMetricsServer(lc fx.Lifecycle, f cliFlags, logger *utils.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: f.metricsAddr, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics server stopped", utils.Err(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// runDemo spawns a small fixed workload once the app has started: under
// a real-time policy (EDF/LLF/GLLF), two periodic threads; under any
// other policy, three worker threads that each log and Yield five times.
// It is
// the runnable analogue of spec.md §8's worked scenarios, not a
// replacement for the kernel/rt test suite's precise assertions.
func runDemo(lc fx.Lifecycle, s *sched.Scheduler, traits config.Traits, logger *utils.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return spawnDemoWorkload(s, traits, logger)
		},
	})
}

func spawnDemoWorkload(s *sched.Scheduler, traits config.Traits, logger *utils.Logger) error {
	alarm := s.Alarm()

	periodicCrit := func(period, capacity clock.Tick) (criterion.Criterion, error) {
		switch traits.Policy() {
		case config.PolicyEDF:
			return criterion.NewEDF(alarm, period, period, capacity, 0, traits.CPUs()), nil
		case config.PolicyLLF:
			return criterion.NewLLF(alarm, period, period, capacity, 0, traits.CPUs()), nil
		case config.PolicyGLLF:
			return criterion.NewGLLF(alarm, period, period, capacity, traits.CPUs()), nil
		default:
			return nil, fmt.Errorf("schedsim: demo workload needs a renewable policy, got %s", traits.Policy())
		}
	}

	if traits.Policy() == config.PolicyEDF || traits.Policy() == config.PolicyLLF || traits.Policy() == config.PolicyGLLF {
		specs := []struct {
			name     string
			period   clock.Tick
			capacity clock.Tick
		}{
			{"job-tight", 50, 10},
			{"job-loose", 200, 20},
		}
		for _, spec := range specs {
			crit, err := periodicCrit(spec.period, spec.capacity)
			if err != nil {
				return err
			}
			job := 0
			_, err = rt.New(s, spec.name, crit, rt.Conf{
				Period:   spec.period,
				Capacity: spec.capacity,
			}, func(self *sched.Thread, j int) int {
				job = j
				logger.Debug("job ran", utils.String("name", spec.name), utils.Int("job", job))
				return 0
			})
			if err != nil {
				return err
			}
		}
		return nil
	}

	// Cooperative policies (FCFS/Priority/RoundRobin) have no periods to
	// renew; demonstrate them with plain Yield-based threads instead.
	for i, rank := range []criterion.Rank{criterion.HIGH, criterion.NORMAL, criterion.LOW} {
		name := fmt.Sprintf("worker-%d", i)
		var crit criterion.Criterion
		switch traits.Policy() {
		case config.PolicyFCFS:
			crit = criterion.NewFCFS(alarm, rank, 0, traits.CPUs())
		case config.PolicyRoundRobin:
			crit = criterion.NewRoundRobin(criterion.NORMAL, 0, traits.CPUs())
		default:
			crit = criterion.NewPriority(rank, 0, traits.CPUs())
		}
		_, err := s.Spawn(name, sched.Configuration{
			State:     sched.StateReady,
			Criterion: crit,
		}, func(self *sched.Thread) int {
			for i := 0; i < 5; i++ {
				logger.Debug("worker tick", utils.String("name", name))
				s.Yield(self)
			}
			return 0
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func main() {
	f := parseFlags()

	app := fx.New(
		fx.Supply(f),
		fx.Provide(newTraits, newLogger, newMetricsRegistry, newScheduler),
		fx.Invoke(registerSchedulerLifecycle, registerMetricsServer, runDemo),
		fx.StopTimeout(10*time.Second),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Println("schedsim: failed to start:", err)
		return
	}

	time.Sleep(f.runFor)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Println("schedsim: failed to stop cleanly:", err)
	}
}
