package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/paragnema1/scc/storage"
	"github.com/paragnema1/scc/topology"
)

// seedFile is the layout of a -seed file.
type seedFile struct {
	Layout []topology.LinkRow  `yaml:"layout"`
	Points []topology.PointRow `yaml:"points"`
	Users  []seedUser          `yaml:"users"`
}

type seedUser struct {
	Username  string   `yaml:"username"`
	Email     string   `yaml:"email"`
	Firstname string   `yaml:"firstname"`
	Lastname  string   `yaml:"lastname"`
	Roles     []string `yaml:"roles"`
}

// seedStore inserts the rows of path into every kind that is still empty.
// Kinds that already hold rows are left alone, so seeding is safe to repeat.
func seedStore(ctx context.Context, store storage.Store, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file %s: %w", path, err)
	}

	layout := make([]storage.Record, 0, len(seed.Layout))
	for _, r := range seed.Layout {
		layout = append(layout, storage.Record{
			"section_id":    r.SectionID,
			"left_normal":   r.LeftNormal,
			"right_normal":  r.RightNormal,
			"left_reverse":  r.LeftReverse,
			"right_reverse": r.RightReverse,
		})
	}
	points := make([]storage.Record, 0, len(seed.Points))
	for _, r := range seed.Points {
		points = append(points, storage.Record{"section_id": r.SectionID, "point_id": r.PointID})
	}
	users := make([]storage.Record, 0, len(seed.Users))
	for _, u := range seed.Users {
		users = append(users, storage.Record{
			"username":  u.Username,
			"email":     u.Email,
			"firstname": u.Firstname,
			"lastname":  u.Lastname,
			"roles":     u.Roles,
		})
	}

	for _, batch := range []struct {
		kind storage.Kind
		rows []storage.Record
	}{
		{storage.KindLayoutConnections, layout},
		{storage.KindPointConfig, points},
		{storage.KindUserDetails, users},
	} {
		if err := seedKind(ctx, store, batch.kind, batch.rows, logger); err != nil {
			return err
		}
	}
	return nil
}

func seedKind(ctx context.Context, store storage.Store, kind storage.Kind, rows []storage.Record,
	logger *slog.Logger) error {
	if len(rows) == 0 {
		return nil
	}
	existing, err := store.Read(ctx, kind)
	if err != nil {
		return fmt.Errorf("read %s: %w", kind, err)
	}
	if len(existing) > 0 {
		logger.Info("Seed skipped, rows present", "kind", kind, "rows", len(existing))
		return nil
	}
	for _, rec := range rows {
		if err := store.Insert(ctx, kind, rec); err != nil {
			return fmt.Errorf("seed %s: %w", kind, err)
		}
	}
	logger.Info("Seeded", "kind", kind, "rows", len(rows))
	return nil
}
