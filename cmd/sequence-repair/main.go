package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/orphanbars/orphanbars-api/internal/repository"
	"github.com/orphanbars/orphanbars-api/internal/service"
	"github.com/orphanbars/orphanbars-api/pkg/config"
	"github.com/orphanbars/orphanbars-api/pkg/database"
	"github.com/orphanbars/orphanbars-api/pkg/export"
	"github.com/orphanbars/orphanbars-api/pkg/logger"
)

// sequence-repair audits and repairs certificate numbering. It must run only
// while the API server is stopped: renumbering rewrites identifiers and the
// shared counter without the transactional guard the live lock path uses.
//
// Usage:
//
//	sequence-repair -mode=audit [-fix]
//	sequence-repair -mode=renumber [-dry-run] [-report=renumber.csv]
func main() {
	mode := flag.String("mode", "audit", "audit or renumber")
	fix := flag.Bool("fix", false, "audit only: correct the counter when it disagrees with issued certificates")
	dryRun := flag.Bool("dry-run", false, "renumber only: report changes without writing them")
	reportPath := flag.String("report", "", "optional CSV report path")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	submissionRepo := repository.NewSubmissionRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	userRepo := repository.NewUserRepository(db)

	svc := service.NewSequenceRepairService(submissionRepo, sequenceRepo, userRepo, logr, cfg.Certificates.Prefix)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var dataset export.Dataset
	switch *mode {
	case "audit":
		report, err := svc.Audit(ctx, *fix)
		if err != nil {
			logr.Sugar().Fatalw("audit failed", "error", err)
		}
		logr.Sugar().Infow("sequence audit complete",
			"counter", report.CounterValue,
			"max_issued", report.MaxIssued,
			"locked", report.LockedCount,
			"gaps", len(report.Gaps),
			"duplicates", len(report.Duplicates),
			"malformed", len(report.Malformed),
			"corrected", report.Corrected,
		)
		dataset = auditDataset(report)
	case "renumber":
		report, err := svc.Renumber(ctx, *dryRun)
		if err != nil {
			logr.Sugar().Fatalw("renumber failed", "error", err)
		}
		logr.Sugar().Infow("renumber complete",
			"total", report.Total,
			"changed", report.Changed,
			"dry_run", report.DryRun,
		)
		dataset = renumberDataset(report)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if *reportPath != "" {
		data, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			logr.Sugar().Fatalw("failed to render report", "error", err)
		}
		if err := os.WriteFile(*reportPath, data, 0o644); err != nil {
			logr.Sugar().Fatalw("failed to write report", "path", *reportPath, "error", err)
		}
		logr.Sugar().Infow("report written", "path", *reportPath)
	}
}

func auditDataset(report *service.SequenceAuditReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Gaps)+len(report.Duplicates)+len(report.Malformed)+1)
	rows = append(rows, map[string]string{
		"kind":  "summary",
		"value": fmt.Sprintf("counter=%d max_issued=%d locked=%d corrected=%t", report.CounterValue, report.MaxIssued, report.LockedCount, report.Corrected),
	})
	for _, gap := range report.Gaps {
		rows = append(rows, map[string]string{"kind": "gap", "value": strconv.FormatInt(gap, 10)})
	}
	for _, dup := range report.Duplicates {
		rows = append(rows, map[string]string{"kind": "duplicate", "value": dup})
	}
	for _, id := range report.Malformed {
		rows = append(rows, map[string]string{"kind": "malformed", "value": id})
	}
	return export.Dataset{Headers: []string{"kind", "value"}, Rows: rows}
}

func renumberDataset(report *service.RenumberReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Changes))
	for _, change := range report.Changes {
		rows = append(rows, map[string]string{
			"submission_id":      change.SubmissionID,
			"old_certificate_id": change.OldCertificateID,
			"new_certificate_id": change.NewCertificateID,
		})
	}
	return export.Dataset{Headers: []string{"submission_id", "old_certificate_id", "new_certificate_id"}, Rows: rows}
}
