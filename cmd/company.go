package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/epunch/internal/model"
)

var (
	managerName string
	managerID   string
	startDay    string
	employeeID  string
	companyID   string
)

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Register companies and set their week start",
}

var companyCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a company together with its manager",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompanyCreate,
}

var companyStartDayCmd = &cobra.Command{
	Use:   "start-day <weekday>",
	Short: "Set the first day of your company's week (managers only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompanyStartDay,
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Register employees",
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an employee to a company",
	Long: `Add an employee to --company, or to the company of the acting user when
--company is not given.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

func init() {
	companyCreateCmd.Flags().StringVar(&managerName, "manager", "", "Manager's name (required)")
	companyCreateCmd.Flags().StringVar(&managerID, "manager-id", "", "Manager's user id (default: generated)")
	companyCreateCmd.Flags().StringVar(&startDay, "start-day", model.DefaultStartDay, "First day of the company week")
	_ = companyCreateCmd.MarkFlagRequired("manager")
	companyCmd.AddCommand(companyCreateCmd)
	companyCmd.AddCommand(companyStartDayCmd)

	userAddCmd.Flags().StringVar(&employeeID, "id", "", "User id (default: generated)")
	userAddCmd.Flags().StringVar(&companyID, "company", "", "Company id")
	userCmd.AddCommand(userAddCmd)
}

func runCompanyCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	company, manager, err := a.svc.CreateCompany(ctx, args[0], startDay,
		model.User{ID: managerID, Name: managerName})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created company %q (id %s), weeks start on %s.\n", company.Name, company.ID, company.StartDay)
	fmt.Fprintf(out, "Manager %s has user id %s.\n", manager.Name, manager.ID)
	if a.cfg.User == "" {
		fmt.Fprintf(out, "Set \"user\": %q in config.json to act as them by default.\n", manager.ID)
	}
	return nil
}

func runCompanyStartDay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	userID, err := a.user()
	if err != nil {
		return err
	}
	manager, err := a.svc.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !manager.IsManager {
		return errNotManager
	}

	company, err := a.svc.SetStartDay(ctx, manager.CompanyID, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Weeks of %q now start on %s.\n", company.Name, company.StartDay)
	return nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	target := companyID
	if target == "" {
		userID, err := a.user()
		if err != nil {
			return fmt.Errorf("pass --company or act as a member of the company: %w", err)
		}
		actor, err := a.svc.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		target = actor.CompanyID
	}

	user, err := a.svc.AddEmployee(ctx, target, model.User{ID: employeeID, Name: args[0]})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s with user id %s.\n", user.Name, user.ID)
	return nil
}
