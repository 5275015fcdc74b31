package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aldoetobex/claims-backend/internal/auth"
	"github.com/aldoetobex/claims-backend/internal/policies"
	"github.com/aldoetobex/claims-backend/pkg/database"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, db, err := setup()
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	},
}

// Staff accounts are never self-registered; signup only creates clients.
var (
	staffEmail    string
	staffName     string
	staffPassword string
)

var createStaffCmd = &cobra.Command{
	Use:   "create-staff",
	Short: "Create a claims staff account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(staffPassword) < 8 {
			return fmt.Errorf("--password must be at least 8 characters")
		}
		_, log, db, err := setup()
		if err != nil {
			return err
		}
		u, err := auth.CreateUser(cmd.Context(), db, staffEmail, staffPassword, staffName, models.RoleStaff)
		if err != nil {
			return err
		}
		log.Info("staff account created", "id", u.ID, "email", u.Email)
		return nil
	},
}

var (
	policyHolder string
	policyType   string
	policyActive bool
)

var upsertPolicyCmd = &cobra.Command{
	Use:   "upsert-policy <policy-number>",
	Short: "Register or update a policy in the lookup table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		holder, err := uuid.Parse(policyHolder)
		if err != nil {
			return fmt.Errorf("--holder must be a user id: %w", err)
		}
		pt := models.PolicyType(strings.ToLower(policyType))
		if !policies.ValidType(pt) {
			return fmt.Errorf("unknown policy type %q", policyType)
		}
		_, log, db, err := setup()
		if err != nil {
			return err
		}
		p := &models.Policy{PolicyNumber: args[0], PolicyType: pt, HolderID: holder, Active: policyActive}
		if err := policies.NewGormLookup(db).Upsert(cmd.Context(), p); err != nil {
			return err
		}
		log.Info("policy saved", "policy", p.PolicyNumber, "type", p.PolicyType, "active", p.Active)
		return nil
	},
}

func init() {
	createStaffCmd.Flags().StringVar(&staffEmail, "email", "", "login email")
	createStaffCmd.Flags().StringVar(&staffName, "name", "", "display name used in status history")
	createStaffCmd.Flags().StringVar(&staffPassword, "password", "", "initial password")
	_ = createStaffCmd.MarkFlagRequired("email")
	_ = createStaffCmd.MarkFlagRequired("password")

	upsertPolicyCmd.Flags().StringVar(&policyHolder, "holder", "", "policy holder user id")
	upsertPolicyCmd.Flags().StringVar(&policyType, "type", "", "health|motor|life|property|travel")
	upsertPolicyCmd.Flags().BoolVar(&policyActive, "active", true, "policy is in force")
	_ = upsertPolicyCmd.MarkFlagRequired("holder")
	_ = upsertPolicyCmd.MarkFlagRequired("type")
}
