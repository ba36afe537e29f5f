package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/domain/models"
	repo "github.com/mamadbah2/pantry/internal/repository/sheets"
)

// ErrExportDisabled is returned when no spreadsheet is configured.
var ErrExportDisabled = errors.New("spreadsheet export is not configured")

// ProductSource reads records straight from the document store.
type ProductSource interface {
	TrackingUsers(ctx context.Context) ([]string, error)
	Snapshot(ctx context.Context, userID, collection string) ([]models.Product, error)
}

// UserDirectory resolves user ids.
type UserDirectory interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// Notifier delivers the summaries.
type Notifier interface {
	ScheduleOneShot(user models.User, n models.Notification, delay time.Duration) bool
}

// Service builds inventory summaries and spreadsheet exports.
type Service struct {
	repo      repo.Repository
	products  ProductSource
	users     UserDirectory
	notifier  Notifier
	sheetName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires a new reporting service instance. repository may be nil when
// export is disabled.
func NewService(repository repo.Repository, products ProductSource, users UserDirectory, notifier Notifier, sheetName string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sheetName == "" {
		sheetName = "Inventory"
	}
	return &Service{
		repo:      repository,
		products:  products,
		users:     users,
		notifier:  notifier,
		sheetName: sheetName,
		logger:    logger,
		now:       time.Now,
	}
}

// BuildSummary renders a days-left overview, most urgent first. Records with an
// unknown projection are listed last.
func BuildSummary(products []models.Product, now time.Time) string {
	header := fmt.Sprintf("Pantry summary (%s)", now.Format(models.DateLayout))
	if len(products) == 0 {
		return header + ": nothing tracked yet."
	}

	sorted := make([]models.Product, len(products))
	copy(sorted, products)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, oki := sorted[i].DaysLeft()
		dj, okj := sorted[j].DaysLeft()
		if oki != okj {
			return oki
		}
		return di < dj
	})

	var b strings.Builder
	b.WriteString(header)
	b.WriteString(":")
	for _, p := range sorted {
		b.WriteString("\n- ")
		b.WriteString(p.Name)
		if days, ok := p.DaysLeft(); ok {
			fmt.Fprintf(&b, ": %d day(s) left", days)
		} else {
			b.WriteString(": usage unknown")
		}
		fmt.Fprintf(&b, " (%d/%d g)", p.Remaining, p.Volume)
	}
	return b.String()
}

// ExportInventory appends one row per record to the inventory sheet.
func (s *Service) ExportInventory(ctx context.Context, user models.User, collection string, products []models.Product) (int, error) {
	if s.repo == nil {
		return 0, ErrExportDisabled
	}

	exportedAt := s.now().Format(time.RFC3339)
	rows := make([][]interface{}, 0, len(products))
	for _, p := range products {
		daysLeft := ""
		if days, ok := p.DaysLeft(); ok {
			daysLeft = fmt.Sprint(days)
		}
		rows = append(rows, []interface{}{
			exportedAt,
			user.Email,
			collection,
			p.ID.String(),
			p.Name,
			string(p.Category),
			p.Volume,
			p.Remaining,
			p.DailyUsage,
			daysLeft,
			p.EndDate,
		})
	}

	if err := s.repo.AppendRows(ctx, fmt.Sprintf("%s!A:K", s.sheetName), rows); err != nil {
		return 0, fmt.Errorf("export inventory: %w", err)
	}
	return len(rows), nil
}

// SendWeeklySummaries notifies every tracking user with a summary of both
// collections and exports the snapshot when a spreadsheet is configured.
func (s *Service) SendWeeklySummaries(ctx context.Context) error {
	userIDs, err := s.products.TrackingUsers(ctx)
	if err != nil {
		return fmt.Errorf("list tracking users: %w", err)
	}

	now := s.now()
	var errs []error
	for _, userID := range userIDs {
		user, err := s.users.FindUserByID(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("load user %s: %w", userID, err))
			continue
		}

		var all []models.Product
		for _, collection := range models.Collections() {
			products, err := s.products.Snapshot(ctx, userID, collection)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			all = append(all, products...)

			if s.repo != nil && len(products) > 0 {
				if _, err := s.ExportInventory(ctx, *user, collection, products); err != nil {
					errs = append(errs, err)
				}
			}
		}

		s.notifier.ScheduleOneShot(*user, models.Notification{
			Title: "Your weekly pantry summary",
			Body:  BuildSummary(all, now),
		}, 0)
	}

	s.logger.Info("weekly summaries sent", zap.Int("users", len(userIDs)))
	return errors.Join(errs...)
}
