package models

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/derslik/tutor/internal/identity"
	"github.com/derslik/tutor/internal/prompt"
)

// Profiles supplies the durable persona facts for an identity. Anonymous
// sessions and admins have no stored profile and get zero facts.
type Profiles struct {
	db *gorm.DB
}

func NewProfiles(db *gorm.DB) *Profiles {
	return &Profiles{db: db}
}

func (p *Profiles) Facts(ctx context.Context, ident identity.Identity) (prompt.Facts, error) {
	if ident.Kind != identity.KindUser {
		return prompt.Facts{}, nil
	}

	var u User
	if err := p.db.WithContext(ctx).First(&u, ident.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return prompt.Facts{}, nil
		}
		return prompt.Facts{}, err
	}
	return prompt.Facts{Name: u.Name, Grade: u.Grade}, nil
}
