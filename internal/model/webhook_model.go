package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Webhook struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Organization string    `gorm:"type:varchar(255);not null;index"`
	Name         string    `gorm:"type:varchar(255)"`
	Endpoint     string    `gorm:"type:text;not null"`
	SigningKey   string    `gorm:"type:varchar(255);not null"`
	Project      string    `gorm:"type:varchar(255)"`
	Environment  string    `gorm:"type:varchar(255)"`
	LastSuccess  *time.Time
	Error        string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (w *Webhook) BeforeCreate(tx *gorm.DB) error {
	if w.Id == uuid.Nil {
		w.Id = uuid.New()
	}
	return nil
}

func (Webhook) TableName() string {
	return "webhooks"
}
