package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jkaninda/mikopo/internal/config"
	"github.com/jkaninda/mikopo/internal/domain"
)

var (
	assessConfigPath    string
	assessName          string
	assessIncome        float64
	assessLoanAmount    float64
	assessPropertyValue float64
	assessMonthlyDebt   float64
	assessLocal         bool
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess a loan application from the command line",
	RunE:  runAssess,
}

func init() {
	assessCmd.Flags().StringVar(&assessConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	assessCmd.Flags().StringVar(&assessName, "name", "", "applicant name")
	assessCmd.Flags().Float64Var(&assessIncome, "income", 0, "annual income")
	assessCmd.Flags().Float64Var(&assessLoanAmount, "loan-amount", 0, "requested loan amount")
	assessCmd.Flags().Float64Var(&assessPropertyValue, "property-value", 0, "property value")
	assessCmd.Flags().Float64Var(&assessMonthlyDebt, "monthly-debt", 0, "total monthly debt payments")
	assessCmd.Flags().BoolVar(&assessLocal, "local", false, "skip the tool server and assess with the local engine")
	_ = assessCmd.MarkFlagRequired("name")
}

// runAssess assesses one application and prints the result as JSON.
func runAssess(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig(assessConfigPath)
	if err != nil {
		return err
	}

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := domain.ApplicantSnapshot{
		Name:          assessName,
		AnnualIncome:  assessIncome,
		LoanAmount:    assessLoanAmount,
		PropertyValue: assessPropertyValue,
		MonthlyDebt:   assessMonthlyDebt,
	}

	var assessment domain.Assessment
	if assessLocal {
		assessment, err = sc.Broker.AssessLocal(ctx, app)
	} else {
		assessment, err = sc.Broker.Assess(ctx, app)
	}
	if err != nil {
		return fmt.Errorf("assessing %s: %w", app.Name, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(assessment)
}
