// Command agentworldd runs one Agent World node: it loads configuration,
// opens a kernel.Kernel (World, Journal, Registry, Pipeline, Bridge), and
// serves the audit query API, the admin API and Prometheus metrics, each on
// its own listener, alongside a loop that periodically snapshots and prunes.
// Grounded on the teacher's
// cmd/explorer/main.go wiring (env/viper-driven config, one HTTP listener
// per concern), generalized from a single ledger-serving binary to this
// node's four listeners/loops.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agentworld/runtime/internal/adminapi"
	"github.com/agentworld/runtime/internal/audit"
	"github.com/agentworld/runtime/internal/bridge"
	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/internal/kernel"
	"github.com/agentworld/runtime/internal/world"
	"github.com/agentworld/runtime/pkg/config"
)

func main() {
	env := flag.String("env", "", "config overlay name under cmd/config (merged over default.yaml)")
	auditAddr := flag.String("audit-addr", ":8090", "bind address for the audit query API")
	adminAddr := flag.String("admin-addr", ":8092", "bind address for the governance/snapshot admin API")
	metricsAddr := flag.String("metrics-addr", ":8091", "bind address for the Prometheus /metrics endpoint")
	validatorsPath := flag.String("validators", "", "path to a JSON file of validator_id -> base64 ed25519 public key; empty runs an open (threshold-0) gate")
	threshold := flag.Int("threshold", 0, "minimum distinct validator signatures a committed batch must carry")
	govValidatorsPath := flag.String("governance-validators", "", "path to a JSON file of signer_id -> base64 ed25519 public key for governance approvals; empty runs governance approval in open (unsigned) mode")
	snapshotInterval := flag.Duration("snapshot-interval", 5*time.Minute, "how often to snapshot world state and prune old snapshots")
	keepLast := flag.Int("snapshot-keep-last", 3, "number of newest snapshots the pruner always keeps")
	keepEveryN := flag.Uint64("snapshot-keep-every-n-ticks", 1000, "snapshots landing on this tick boundary survive pruning regardless of age")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := loadConfig(*env)
	if err != nil {
		log.Fatalw("loading config", "error", err)
	}

	verifier, err := loadVerifier(*validatorsPath, *threshold)
	if err != nil {
		log.Fatalw("loading validator set", "error", err)
	}

	govValidators, err := loadGovernanceValidators(*govValidatorsPath)
	if err != nil {
		log.Fatalw("loading governance validator set", "error", err)
	}

	k, err := kernel.Open(cfg, verifier, govValidators, logger)
	if err != nil {
		log.Fatalw("opening kernel", "error", err)
	}
	defer k.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	auditSrv := &http.Server{Addr: *auditAddr, Handler: audit.NewServer(k.Audit, logger)}
	go func() {
		log.Infow("audit API listening", "addr", *auditAddr)
		if err := auditSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("audit server stopped", "error", err)
		}
	}()

	adminSrv := &http.Server{Addr: *adminAddr, Handler: adminapi.NewServer(k, logger)}
	go func() {
		log.Infow("admin API listening", "addr", *adminAddr)
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("admin server stopped", "error", err)
		}
	}()

	metricsSrv := k.Metrics.StartServer(*metricsAddr)
	log.Infow("metrics listening", "addr", *metricsAddr)

	go k.Metrics.Run(ctx, 10*time.Second)

	policy := domain.SnapshotRetentionPolicy{KeepLast: *keepLast, KeepEveryNTicks: *keepEveryN}
	go runSnapshotLoop(ctx, k, cfg.World.SnapshotPath, policy, *snapshotInterval, log)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = auditSrv.Shutdown(shutdownCtx)
	_ = adminSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func loadConfig(env string) (*config.Config, error) {
	if cfg, err := config.Load(env); err == nil {
		return cfg, nil
	}
	return config.LoadFromEnv()
}

// runSnapshotLoop periodically takes a World snapshot and prunes older
// ones under policy, the way the kernel amortizes full-journal replay on
// restart (spec §4.4).
func runSnapshotLoop(ctx context.Context, k *kernel.Kernel, dir string, policy domain.SnapshotRetentionPolicy, interval time.Duration, log *zap.SugaredLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := world.SnapshotOf(k.World, k.Journal.Length(), codec.Hash)
			if err != nil {
				log.Errorw("building snapshot", "error", err)
				continue
			}
			path, err := world.SaveSnapshotFile(dir, snap)
			if err != nil {
				log.Errorw("saving snapshot", "error", err)
				continue
			}
			log.Infow("snapshot written", "path", path, "tick", snap.TakenAtTick)
			if err := world.PruneSnapshots(dir, policy); err != nil {
				log.Warnw("pruning snapshots", "error", err)
			}
		}
	}
}
