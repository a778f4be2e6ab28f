package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"loyaltywallet/wallet"
)

const (
	msgCardCreated        = "Kart yaradıldı!"
	msgCreateParamsNeeded = "Bütün parametrləri daxil et!"
	msgUpdateParamsNeeded = "userId və newBonusBalance daxil edilməlidir!"
	msgUserIDNeeded       = "userId daxil edilməlidir!"
)

// CardService is the set of card operations the HTTP layer delegates to.
type CardService interface {
	ClassInfo(ctx context.Context) (json.RawMessage, error)
	CreateCard(ctx context.Context, userID, userName, cardNumber, bonusBalance string) (json.RawMessage, error)
	UpdateBalance(ctx context.Context, userID, newBalance string) (json.RawMessage, error)
	DeleteCard(ctx context.Context, userID string) (string, error)
	SaveLink(ctx context.Context, userID string) (string, error)
}

type createCardResponse struct {
	Message    string `json:"message"`
	WalletLink string `json:"walletLink"`
}

type walletLinkResponse struct {
	WalletLink string `json:"walletLink"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type cardRoutes struct {
	svc    CardService
	writer *responder
}

// requireParams returns the trimmed values of the named query parameters, or
// ok=false when any of them is absent or blank.
func requireParams(r *http.Request, names ...string) (values []string, ok bool) {
	query := r.URL.Query()
	values = make([]string, len(names))
	for i, name := range names {
		value := strings.TrimSpace(query.Get(name))
		if value == "" {
			return nil, false
		}
		values[i] = value
	}
	return values, true
}

func missing(message string) error {
	return fmt.Errorf("%w: %s", wallet.ErrMissingParameter, message)
}

func (cr *cardRoutes) createCard(w http.ResponseWriter, r *http.Request) {
	params, ok := requireParams(r, "userId", "userName", "cardNumber", "bonusBalance")
	if !ok {
		cr.writer.fail(w, r, "create-card", errorKindParams, missing(msgCreateParamsNeeded), msgCreateParamsNeeded)
		return
	}
	userID, userName, cardNumber, bonusBalance := params[0], params[1], params[2], params[3]
	if _, err := cr.svc.CreateCard(r.Context(), userID, userName, cardNumber, bonusBalance); err != nil {
		cr.writer.fail(w, r, "create-card", upstreamKind(err), err, wallet.ErrorMessage(err))
		return
	}
	// The object already exists at this point; a retry fails as a duplicate, so
	// callers recover the link through /get-wallet-token.
	link, err := cr.svc.SaveLink(r.Context(), userID)
	if err != nil {
		cr.writer.fail(w, r, "create-card", errorKindSigning, err, err.Error())
		return
	}
	cr.writer.ok(w, createCardResponse{Message: msgCardCreated, WalletLink: link})
}

// classInfo answers with the raw class resource, or JSON null when it cannot be
// fetched under the legacy contract.
func (cr *cardRoutes) classInfo(w http.ResponseWriter, r *http.Request) {
	info, err := cr.svc.ClassInfo(r.Context())
	if err != nil {
		if cr.writer.statusCodes {
			cr.writer.fail(w, r, "get-class-info", upstreamKind(err), err, wallet.ErrorMessage(err))
			return
		}
		cr.writer.obs.RecordFailure("get-class-info", string(upstreamKind(err)))
		cr.writer.ok(w, nil)
		return
	}
	cr.writer.ok(w, info)
}

func (cr *cardRoutes) updateBonus(w http.ResponseWriter, r *http.Request) {
	params, ok := requireParams(r, "userId", "newBonusBalance")
	if !ok {
		cr.writer.fail(w, r, "update-bonus", errorKindParams, missing(msgUpdateParamsNeeded), msgUpdateParamsNeeded)
		return
	}
	updated, err := cr.svc.UpdateBalance(r.Context(), params[0], params[1])
	if err != nil {
		cr.writer.fail(w, r, "update-bonus", upstreamKind(err), err, wallet.ErrorMessage(err))
		return
	}
	cr.writer.ok(w, updated)
}

func (cr *cardRoutes) walletToken(w http.ResponseWriter, r *http.Request) {
	params, ok := requireParams(r, "userId")
	if !ok {
		cr.writer.fail(w, r, "get-wallet-token", errorKindParams, missing(msgUserIDNeeded), msgUserIDNeeded)
		return
	}
	link, err := cr.svc.SaveLink(r.Context(), params[0])
	if err != nil {
		cr.writer.fail(w, r, "get-wallet-token", errorKindSigning, err, err.Error())
		return
	}
	cr.writer.ok(w, walletLinkResponse{WalletLink: link})
}

func (cr *cardRoutes) deleteCard(w http.ResponseWriter, r *http.Request) {
	params, ok := requireParams(r, "userId")
	if !ok {
		cr.writer.fail(w, r, "delete-card", errorKindParams, missing(msgUserIDNeeded), msgUserIDNeeded)
		return
	}
	msg, err := cr.svc.DeleteCard(r.Context(), params[0])
	if err != nil {
		cr.writer.fail(w, r, "delete-card", upstreamKind(err), err, wallet.ErrorMessage(err))
		return
	}
	cr.writer.ok(w, messageResponse{Message: msg})
}

func upstreamKind(err error) errorKind {
	if wallet.IsTimeout(err) {
		return errorKindTimeout
	}
	return errorKindUpstream
}
