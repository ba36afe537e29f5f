package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/domain/models"
	"github.com/mamadbah2/pantry/internal/service/auth"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

// ErrUnsupportedCommand indicates we do not yet support the requested command.
var ErrUnsupportedCommand = errors.New("unsupported command")

// ErrUnknownSender is returned when the phone number is not linked to an account.
var ErrUnknownSender = errors.New("sender is not linked to an account")

const helpText = "Commands:\n" +
	"/stock [products|saved] - list your products\n" +
	"/consume <id> <grams> [products|saved] - record usage\n" +
	"/restock <id> <grams> [products|saved] - refill a product\n" +
	"/help - show this message"

// Inventory is the subset of the inventory service driven by chat commands.
type Inventory interface {
	List(ctx context.Context, collection string) ([]models.ProductView, error)
	Consume(ctx context.Context, collection string, id models.ProductID, amount int) (models.Result, error)
	Restock(ctx context.Context, collection string, id models.ProductID, amount int) (models.Result, error)
}

// UserLookup resolves the account behind a WhatsApp number.
type UserLookup interface {
	FindUserByPhone(ctx context.Context, phone string) (*models.User, error)
}

// Dispatcher executes parsed commands on behalf of a sender.
type Dispatcher interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error)
}

// Service implements the Dispatcher interface.
type Service struct {
	inventory         Inventory
	users             UserLookup
	defaultCollection string
	logger            *zap.Logger
}

// NewService constructs a command dispatcher.
func NewService(inventory Inventory, users UserLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		inventory:         inventory,
		users:             users,
		defaultCollection: models.CollectionSavedProducts,
		logger:            logger,
	}
}

// HandleCommand runs the command as the account linked to sender and returns the reply text.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Any("args", cmd.Args))

	if cmd.Type == models.CommandHelp {
		return helpText, nil
	}
	if cmd.Type == models.CommandUnknown {
		return "", ErrUnsupportedCommand
	}

	user, err := s.users.FindUserByPhone(ctx, normalizePhone(sender))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return "", ErrUnknownSender
		}
		return "", err
	}
	ctx = auth.WithUser(ctx, user)

	switch cmd.Type {
	case models.CommandStock:
		collection, err := s.collectionArg(cmd.Args, 0)
		if err != nil {
			return "", err
		}
		views, err := s.inventory.List(ctx, collection)
		if err != nil {
			return "", err
		}
		return formatStock(views), nil
	case models.CommandConsume, models.CommandRestock:
		id, amount, collection, err := s.adjustmentArgs(cmd.Args)
		if err != nil {
			return "", err
		}
		if cmd.Type == models.CommandConsume {
			res, err := s.inventory.Consume(ctx, collection, id, amount)
			if err != nil {
				return "", err
			}
			if res.Outcome != models.OutcomeSaved {
				return notSaved(res), nil
			}
			return fmt.Sprintf("Used %d g of %s. %s", amount, res.Product.Name, describe(res.Product)), nil
		}
		res, err := s.inventory.Restock(ctx, collection, id, amount)
		if err != nil {
			return "", err
		}
		if res.Outcome != models.OutcomeSaved {
			return notSaved(res), nil
		}
		return fmt.Sprintf("Restocked %s. %s", res.Product.Name, describe(res.Product)), nil
	default:
		return "", ErrUnsupportedCommand
	}
}

func (s *Service) adjustmentArgs(args []string) (models.ProductID, int, string, error) {
	if len(args) < 2 {
		return 0, 0, "", ErrInvalidArguments
	}

	id, err := models.ParseProductID(args[0])
	if err != nil {
		return 0, 0, "", ErrInvalidArguments
	}

	amount, err := strconv.Atoi(strings.TrimSuffix(args[1], "g"))
	if err != nil || amount <= 0 {
		return 0, 0, "", ErrInvalidArguments
	}

	collection, err := s.collectionArg(args, 2)
	if err != nil {
		return 0, 0, "", err
	}
	return id, amount, collection, nil
}

func (s *Service) collectionArg(args []string, idx int) (string, error) {
	if len(args) <= idx {
		return s.defaultCollection, nil
	}
	switch args[idx] {
	case "products":
		return models.CollectionProducts, nil
	case "saved", "savedproducts":
		return models.CollectionSavedProducts, nil
	default:
		return "", ErrInvalidArguments
	}
}

// HelpText lists the supported commands.
func HelpText() string { return helpText }

func normalizePhone(sender string) string {
	sender = strings.TrimSpace(sender)
	if strings.HasPrefix(sender, "+") {
		return sender
	}
	return "+" + sender
}

// notSaved answers a write that reached no stable remote state.
func notSaved(res models.Result) string {
	if res.Outcome == models.OutcomeUnreconciled {
		return fmt.Sprintf("The change to %s could not be confirmed. Send /stock in a moment to check it.", res.Product.Name)
	}
	return fmt.Sprintf("The change to %s was not saved, nothing changed. Please try again.", res.Product.Name)
}

func describe(v models.ProductView) string {
	left := "usage unknown"
	if v.DaysLeft != nil {
		left = fmt.Sprintf("%d day(s) left", *v.DaysLeft)
	}
	return fmt.Sprintf("Now %d/%d g, %s.", v.Remaining, v.Volume, left)
}

func formatStock(views []models.ProductView) string {
	if len(views) == 0 {
		return "No products tracked yet."
	}

	var b strings.Builder
	b.WriteString("Your stock:")
	for _, v := range views {
		fmt.Fprintf(&b, "\n#%s %s: %s", v.ID, v.Name, describe(v))
	}
	return b.String()
}
