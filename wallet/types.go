package wallet

import (
	"fmt"

	walletobjects "google.golang.org/api/walletobjects/v1"
)

const (
	objectStateActive  = "active"
	barcodeTypeCode128 = "CODE_128"
	imageModuleID      = "IMAGE_MODULE_ID"
)

// Style captures the fixed visual assets applied to every loyalty object.
type Style struct {
	HexBackgroundColor  string
	LogoURI             string
	BackgroundImageURI  string
	BackgroundImageAlt  string
	BackgroundImageLang string
}

// FormatBalance renders a point balance the way the issued cards display it.
func FormatBalance(balance string) string {
	return fmt.Sprintf("%s Bonus", balance)
}

func balancePoints(balance string) *walletobjects.LoyaltyPoints {
	return &walletobjects.LoyaltyPoints{
		Balance: &walletobjects.LoyaltyPointsBalance{String: FormatBalance(balance)},
	}
}

// NewLoyaltyObject assembles the insert payload for a user's card.
func NewLoyaltyObject(objectID, classID, userName, cardNumber, bonusBalance string, style Style) *walletobjects.LoyaltyObject {
	obj := &walletobjects.LoyaltyObject{
		Id:                 objectID,
		ClassId:            classID,
		State:              objectStateActive,
		AccountId:          cardNumber,
		AccountName:        userName,
		Barcode:            &walletobjects.Barcode{Type: barcodeTypeCode128, Value: cardNumber},
		LoyaltyPoints:      balancePoints(bonusBalance),
		HexBackgroundColor: style.HexBackgroundColor,
	}
	if style.BackgroundImageURI != "" {
		lang := style.BackgroundImageLang
		if lang == "" {
			lang = "en-US"
		}
		obj.ImageModulesData = []*walletobjects.ImageModuleData{{
			Id: imageModuleID,
			MainImage: &walletobjects.Image{
				SourceUri: &walletobjects.ImageUri{Uri: style.BackgroundImageURI},
				ContentDescription: &walletobjects.LocalizedString{
					DefaultValue: &walletobjects.TranslatedString{Language: lang, Value: style.BackgroundImageAlt},
				},
			},
		}}
	}
	if style.LogoURI != "" {
		obj.Logo = &walletobjects.Image{SourceUri: &walletobjects.ImageUri{Uri: style.LogoURI}}
	}
	return obj
}

// NewBalancePatch builds the partial update that only touches the point balance.
// Unset fields are omitted from the request body.
func NewBalancePatch(balance string) *walletobjects.LoyaltyObject {
	return &walletobjects.LoyaltyObject{LoyaltyPoints: balancePoints(balance)}
}
