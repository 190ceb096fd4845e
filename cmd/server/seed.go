package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/quorumhq/quorum/internal/db"
	"github.com/quorumhq/quorum/internal/models"
)

// seedFile is the JSON shape consumed by `quorum-server seed <file>`.
type seedFile struct {
	Admins []struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Role     string `json:"role"`
	} `json:"admins"`
	Invitations []struct {
		Email string `json:"email"`
		Group string `json:"group"`
	} `json:"invitations"`
	Questions []struct {
		ID       string   `json:"id"`
		Groups   []string `json:"groups"`
		Text     string   `json:"text"`
		Type     string   `json:"type"`
		Options  []string `json:"options"`
		Required bool     `json:"required"`
		Order    int      `json:"order"`
	} `json:"questions"`
}

func runSeed(store *db.SQLiteStore, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: quorum-server seed <seed.json>")
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var sf seedFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	now := time.Now().UTC()
	for _, a := range sf.Admins {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", a.Email, err)
		}
		role := a.Role
		if role == "" {
			role = "reviewer"
		}
		if err := store.AddAdmin(&models.Administrator{Email: a.Email, PassHash: hash, Name: a.Name, Role: role, CreatedAt: now}); err != nil {
			log.Printf("seed: skip admin %s: %v", a.Email, err)
			continue
		}
	}
	for _, inv := range sf.Invitations {
		group := models.StakeholderGroup(inv.Group)
		if !models.ValidGroup(group) {
			return fmt.Errorf("invitation %s: unknown group %q", inv.Email, inv.Group)
		}
		if err := store.AddInvitation(&models.Invitation{Email: inv.Email, Group: group, CreatedAt: now, UpdatedAt: now}); err != nil {
			log.Printf("seed: skip invitation %s: %v", inv.Email, err)
			continue
		}
	}
	for _, q := range sf.Questions {
		groups := make([]models.StakeholderGroup, 0, len(q.Groups))
		for _, g := range q.Groups {
			sg := models.StakeholderGroup(g)
			if !models.ValidGroup(sg) {
				return fmt.Errorf("question %s: unknown group %q", q.ID, g)
			}
			groups = append(groups, sg)
		}
		qType := q.Type
		if qType == "" {
			qType = "likert"
		}
		if err := store.AddQuestion(&models.Question{
			ID: q.ID, Groups: groups, Text: q.Text, Type: qType,
			Options: q.Options, Required: q.Required, Order: q.Order,
		}); err != nil {
			log.Printf("seed: skip question %s: %v", q.ID, err)
			continue
		}
	}
	store.AddAudit(models.AuditEntry{Time: now, Actor: "seed", Action: "seed", Target: args[0]})
	log.Printf("seed completed: %d admins, %d invitations, %d questions", len(sf.Admins), len(sf.Invitations), len(sf.Questions))
	return nil
}
