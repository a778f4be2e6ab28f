package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"loyaltywallet/observability/logging"
)

// DeletedMessage is returned once the issuer accepts a deletion.
const DeletedMessage = "Kart uğurla silindi!"

// Linker produces save-to-wallet URLs.
type Linker interface {
	SaveURL(userID string) (string, error)
}

// ServiceConfig describes the fixed issuer resources the service operates on.
type ServiceConfig struct {
	IssuerID    string
	ClassSuffix string
	Style       Style
}

// Service composes the issuer API client and the link signer into the card
// operations exposed over HTTP.
type Service struct {
	client   Client
	linker   Linker
	issuerID string
	classID  string
	style    Style
	logger   *slog.Logger
}

func NewService(cfg ServiceConfig, client Client, linker Linker, logger *slog.Logger) (*Service, error) {
	if client == nil {
		return nil, errors.New("wallet service: client required")
	}
	if linker == nil {
		return nil, errors.New("wallet service: linker required")
	}
	issuerID := strings.TrimSpace(cfg.IssuerID)
	if issuerID == "" {
		return nil, errors.New("wallet service: issuer id required")
	}
	if strings.TrimSpace(cfg.ClassSuffix) == "" {
		return nil, errors.New("wallet service: class suffix required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:   client,
		linker:   linker,
		issuerID: issuerID,
		classID:  ClassID(issuerID, strings.TrimSpace(cfg.ClassSuffix)),
		style:    cfg.Style,
		logger:   logger.With("component", "wallet"),
	}, nil
}

// ClassID returns the fully qualified class reference.
func (s *Service) ClassID() string { return s.classID }

// ObjectID derives the object reference for userID under the configured issuer.
func (s *Service) ObjectID(userID string) string { return ObjectID(s.issuerID, userID) }

func (s *Service) ClassInfo(ctx context.Context) (json.RawMessage, error) {
	info, err := s.client.GetClass(ctx, s.classID)
	if err != nil {
		s.logger.Error("class lookup failed", "class_id", s.classID, "error", err)
		return nil, err
	}
	return info, nil
}

// CreateCard inserts a new loyalty object for the user. Existing objects are not
// checked for; the issuer rejects duplicates.
func (s *Service) CreateCard(ctx context.Context, userID, userName, cardNumber, bonusBalance string) (json.RawMessage, error) {
	objectID := s.ObjectID(userID)
	obj := NewLoyaltyObject(objectID, s.classID, userName, cardNumber, bonusBalance, s.style)
	created, err := s.client.InsertObject(ctx, obj)
	if err != nil {
		s.logger.Error("create card failed", "object_id", objectID, "error", err)
		return nil, err
	}
	s.logger.Info("card created", "object_id", objectID)
	return created, nil
}

func (s *Service) UpdateBalance(ctx context.Context, userID, newBalance string) (json.RawMessage, error) {
	objectID := s.ObjectID(userID)
	updated, err := s.client.PatchObject(ctx, objectID, NewBalancePatch(newBalance))
	if err != nil {
		s.logger.Error("balance update failed", "object_id", objectID, "error", err)
		return nil, err
	}
	s.logger.Info("balance updated", "object_id", objectID)
	return updated, nil
}

func (s *Service) DeleteCard(ctx context.Context, userID string) (string, error) {
	objectID := s.ObjectID(userID)
	if err := s.client.DeleteObject(ctx, objectID); err != nil {
		s.logger.Error("delete card failed", "object_id", objectID, "error", err)
		return "", err
	}
	s.logger.Info("card deleted", "object_id", objectID)
	return DeletedMessage, nil
}

func (s *Service) SaveLink(_ context.Context, userID string) (string, error) {
	link, err := s.linker.SaveURL(userID)
	if err != nil {
		s.logger.Error("save link signing failed", "object_id", s.ObjectID(userID), "error", err)
		return "", err
	}
	s.logger.Debug("save link issued", "object_id", s.ObjectID(userID), "link", logging.MaskURL(link))
	return link, nil
}
