package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/noah-isme/institute-grading-api/internal/grading"
	"github.com/noah-isme/institute-grading-api/internal/models"
	"github.com/noah-isme/institute-grading-api/internal/repository"
	"github.com/noah-isme/institute-grading-api/internal/service"
	"github.com/noah-isme/institute-grading-api/pkg/config"
	"github.com/noah-isme/institute-grading-api/pkg/database"
	"github.com/noah-isme/institute-grading-api/pkg/logger"
)

type divergence struct {
	Record    models.SubjectGradeRecord
	Fresh     *float64
	ProfileID string
	Version   int
	Reason    string
}

func main() {
	var (
		levelRaw  string
		systemRaw string
		year      string
		subjectID string
		timeout   time.Duration
		strict    bool
	)

	flag.StringVar(&levelRaw, "level", "", "Education level code or label (required)")
	flag.StringVar(&systemRaw, "system", "", "Study system code or label (required)")
	flag.StringVar(&year, "year", "", "Academic year, e.g. 2024/2025")
	flag.StringVar(&subjectID, "subject", "", "Restrict to one subject ID")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall timeout")
	flag.BoolVar(&strict, "strict", false, "Exit with status 1 when divergent rows are found")
	flag.Parse()

	level, ok := models.ParseEducationLevel(levelRaw)
	if !ok {
		log.Fatalf("unknown education level %q", levelRaw)
	}
	system, ok := models.ParseStudySystem(systemRaw)
	if !ok {
		log.Fatalf("unknown study system %q", systemRaw)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg.Database.AppName = "recompute-audit"
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer db.Close()

	var legacy *grading.LegacyTable
	if cfg.Grading.SeedLegacyTable {
		legacy = grading.DefaultLegacyTable()
	}
	distributions := service.NewDistributionService(repository.NewDistributionProfileRepository(db), nil, nil, nil, logr,
		service.DistributionServiceConfig{Legacy: legacy})

	records, err := repository.NewGradeRecordRepository(db).ListByScope(ctx, level, system, subjectID, year)
	if err != nil {
		log.Fatalf("failed to load records: %v", err)
	}
	subjects, err := repository.NewSubjectRepository(db).ListByIDs(ctx, subjectIDs(records))
	if err != nil {
		log.Fatalf("failed to load subjects: %v", err)
	}

	diffs, err := audit(ctx, distributions, level, system, records, subjects)
	if err != nil {
		log.Fatalf("audit failed: %v", err)
	}

	printReport(diffs)
	fmt.Printf("Scanned: %d, Divergent: %d\n", len(records), len(diffs))
	if strict && len(diffs) > 0 {
		os.Exit(1)
	}
}

type resolver interface {
	Resolve(ctx context.Context, key models.DistributionKey) (*models.DistributionProfile, error)
}

func audit(ctx context.Context, distributions resolver, level models.EducationLevel, system models.StudySystem, records []models.SubjectGradeRecord, subjects map[string]models.Subject) ([]divergence, error) {
	profiles := make(map[string]*models.DistributionProfile)
	var diffs []divergence
	for _, record := range records {
		subject, ok := subjects[record.SubjectID]
		if !ok {
			diffs = append(diffs, divergence{Record: record, Reason: "subject missing"})
			continue
		}
		profile, ok := profiles[subject.Name]
		if !ok {
			resolved, err := distributions.Resolve(ctx, models.DistributionKey{EducationLevel: level, StudySystem: system, Subject: subject.Name})
			if err != nil {
				diffs = append(diffs, divergence{Record: record, Reason: err.Error()})
				continue
			}
			profiles[subject.Name] = resolved
			profile = resolved
		}

		fresh := grading.AggregatePeriod(record.Months(), record.ExamScore, profile.Period(record.Period), record.Period)
		d := divergence{Record: record, Fresh: fresh.PeriodTotal, ProfileID: profile.ID, Version: profile.Version}
		switch {
		case !equalTotals(fresh.PeriodTotal, record.PeriodTotal):
			d.Reason = "period total differs"
		case record.ProfileID != profile.ID || record.ProfileVersion != profile.Version:
			d.Reason = "profile stamp outdated"
		default:
			continue
		}
		diffs = append(diffs, d)
	}
	sort.SliceStable(diffs, func(i, j int) bool {
		if diffs[i].Record.StudentID != diffs[j].Record.StudentID {
			return diffs[i].Record.StudentID < diffs[j].Record.StudentID
		}
		return diffs[i].Record.Period < diffs[j].Record.Period
	})
	return diffs, nil
}

func equalTotals(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return grading.Round1(*a) == grading.Round1(*b)
}

func subjectIDs(records []models.SubjectGradeRecord) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, r := range records {
		if _, ok := seen[r.SubjectID]; ok {
			continue
		}
		seen[r.SubjectID] = struct{}{}
		ids = append(ids, r.SubjectID)
	}
	return ids
}

func formatTotal(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func printReport(diffs []divergence) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STUDENT\tSUBJECT\tYEAR\tPERIOD\tSTORED\tFRESH\tSTAMP\tREASON")
	for _, d := range diffs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s@%d\t%s\n",
			d.Record.StudentID,
			d.Record.SubjectID,
			d.Record.AcademicYear,
			d.Record.Period,
			formatTotal(d.Record.PeriodTotal),
			formatTotal(d.Fresh),
			d.Record.ProfileID,
			d.Record.ProfileVersion,
			d.Reason,
		)
	}
	_ = w.Flush()
}
