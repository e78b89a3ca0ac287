package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tagd/internal/tagging/models"
	"tagd/pkg/tagname"
)

// splitTags splits a flag value with the active delimiter so queries parse
// lists the same way the mutations do.
func splitTags(list string) []string {
	return tagname.Split(list, flagDelimiter)
}

func subjectArg(args []string) models.SubjectRef {
	return models.SubjectRef{Type: args[0], ID: args[1]}
}

func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach TYPE ID TAGS",
		Short: "Attach tags to a subject (delimiter-separated list)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return tagging.AttachList(cmd.Context(), subjectArg(args), args[2])
		},
	}
}

func newDetachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detach TYPE ID [TAGS]",
		Short: "Detach tags from a subject; omit TAGS to clear all",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				return tagging.Detach(cmd.Context(), subjectArg(args), nil)
			}
			return tagging.DetachList(cmd.Context(), subjectArg(args), args[2])
		},
	}
}

func newReplaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replace TYPE ID TAGS",
		Short: "Make the subject's tag set equal the given list",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return tagging.ReplaceList(cmd.Context(), subjectArg(args), args[2])
		},
	}
}

func newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags TYPE ID",
		Short: "List a subject's tags",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := tagging.SubjectTags(cmd.Context(), subjectArg(args))
			if err != nil {
				return err
			}
			tw := newTabWriter()
			fmt.Fprintln(tw, "SLUG\tNAME\tLINKED")
			for _, link := range links {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", link.Slug, link.Name, link.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}

func newCatalogCmd() *cobra.Command {
	var subjectType string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the tag catalog with usage counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				tags []models.Tag
				err  error
			)
			if subjectType != "" {
				tags, err = tagging.ExistingTags(cmd.Context(), subjectType)
			} else {
				tags, err = tagging.AllTags(cmd.Context())
			}
			if err != nil {
				return err
			}
			tw := newTabWriter()
			fmt.Fprintln(tw, "SLUG\tNAME\tCOUNT")
			for _, tag := range tags {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", tag.Slug, tag.Name, tag.UsageCount)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&subjectType, "subject-type", "", "only tags linked to subjects of this type")
	return cmd
}

func newSubjectsCmd() *cobra.Command {
	var allTags, anyTags string
	cmd := &cobra.Command{
		Use:   "subjects TYPE",
		Short: "Find subjects by tag membership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (allTags == "") == (anyTags == "") {
				return fmt.Errorf("exactly one of --all and --any is required")
			}
			var (
				refs []models.SubjectRef
				err  error
			)
			if allTags != "" {
				refs, err = tagging.SubjectsWithAllTags(cmd.Context(), args[0], splitTags(allTags))
			} else {
				refs, err = tagging.SubjectsWithAnyTag(cmd.Context(), args[0], splitTags(anyTags))
			}
			if err != nil {
				return err
			}
			for _, ref := range refs {
				fmt.Println(ref.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&allTags, "all", "", "subjects holding every one of these tags")
	cmd.Flags().StringVar(&anyTags, "any", "", "subjects holding at least one of these tags")
	return cmd
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every tag whose usage count is zero or below",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deleted, err := tagging.PurgeUnusedTags(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("purged %d tags\n", deleted)
			return nil
		},
	}
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}
