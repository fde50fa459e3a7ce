package domain

import "time"

// QRCode is the issued QR artefact for a card. ScanToken is re-signed every
// time the card's verification state changes.
type QRCode struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CardID     string    `gorm:"uniqueIndex;size:36;not null" json:"cardId"`
	CardNumber string    `gorm:"size:16;not null" json:"cardNumber"`
	HolderName string    `gorm:"size:120;not null" json:"holderName"`
	ScanURL    string    `gorm:"size:1024;not null" json:"scanUrl"`
	ImagePNG   string    `gorm:"type:text;not null" json:"qrValue"`
	ObjectKey  string    `gorm:"size:512" json:"objectKey,omitempty"`
	ScanToken  string    `gorm:"type:text" json:"-"`
	ImageURL   string    `gorm:"-" json:"imageUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
