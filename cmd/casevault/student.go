package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/casevault/internal/models"
)

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage student records in the Core store",
}

var studentAddCmd = &cobra.Command{
	Use:     "add",
	Short:   "Add a student",
	Example: `  casevault student add --vorname Mia --name Keller --geburtstag 2014-03-09`,
	Args:    requireArgs(0),
	RunE:    runStudentAdd,
}

var studentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List students by name",
	Args:  requireArgs(0),
	RunE:  runStudentList,
}

var newStudent models.NewStudent

func init() {
	rootCmd.AddCommand(studentCmd)
	studentCmd.AddCommand(studentAddCmd, studentListCmd)

	f := studentAddCmd.Flags()
	f.StringVar(&newStudent.ID, "id", "", "Student id (default: random UUID)")
	f.StringVar(&newStudent.FirstName, "vorname", "", "First name (required)")
	f.StringVar(&newStudent.LastName, "name", "", "Last name (required)")
	f.StringVar(&newStudent.Birthday, "geburtstag", "", "Birthday as YYYY-MM-DD")
	f.StringVar(&newStudent.Address, "adresse", "", "Postal address")
	f.StringVar(&newStudent.Remark, "bemerkung", "", "Free-text remark")
}

func runStudentAdd(cmd *cobra.Command, args []string) error {
	return withStores(cmd.Context(), func(ctx context.Context) error {
		id, err := apiClient.Students.Add(ctx, newStudent)
		if err != nil {
			return err
		}
		if err := apiClient.Core.Persist(ctx); err != nil {
			return err
		}

		if jsonOutput {
			printJSON(map[string]interface{}{"success": true, "id": id})
			return nil
		}
		printSuccess("Added student %s %s (%s)", newStudent.FirstName, newStudent.LastName, id)
		return nil
	})
}

func runStudentList(cmd *cobra.Command, args []string) error {
	return withStores(cmd.Context(), func(ctx context.Context) error {
		list, err := apiClient.Students.List(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			if list == nil {
				list = []models.Student{}
			}
			printJSON(list)
			return nil
		}
		if len(list) == 0 {
			printInfo("No students yet.")
			return nil
		}

		printHeader(fmt.Sprintf("%d students", len(list)))
		for _, st := range list {
			fmt.Printf("  %-36s  %s, %s", st.ID, st.LastName, st.FirstName)
			if st.Birthday != "" {
				fmt.Printf("  (%s)", st.Birthday)
			}
			fmt.Println()
		}
		return nil
	})
}
