package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/isometry/dirconv/internal/ldap"
)

var kinds = []ldap.Kind{ldap.KindContent, ldap.KindAdd, ldap.KindDelete, ldap.KindModify, ldap.KindRename}

func (a *app) newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that every record parses and maps onto an LDAP request",
		Long: `Validate reads a stream and builds the LDAP request each record would
replay against a directory, reporting counts per change type.

Parsing stops at the first syntax error. Records whose DN or new RDN is
malformed, or whose objectGUID or objectSid values are neither the binary
nor the canonical text form, are reported and counted as invalid.

The exit status is the LDAP result code of the first failure.`,
		Args: cobra.NoArgs,
		RunE: a.runValidate,
	}

	addInputFlags(cmd.Flags())
	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, args []string) error {
	c := a.resolveInput(cmd)
	if err := c.Validate(); err != nil {
		return err
	}

	r, err := openInput(cmd, c, c.Options(a.ldapLogger()))
	if err != nil {
		return err
	}
	defer r.Close()

	counts := make(map[ldap.Kind]int)
	total, invalid := 0, 0
	var firstErr error
	for {
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		total++

		req, err := rec.Request()
		if err == nil {
			err = ldap.ValidateWellKnownValues(rec)
		}
		if err != nil {
			invalid++
			if firstErr == nil {
				firstErr = err
			}
			a.logger.Warn().Err(err).Str("dn", rec.DN()).Msg("Record cannot be replayed")
			continue
		}
		counts[rec.Kind()]++

		ev := a.logger.Debug().Str("dn", rec.DN()).Str("request", fmt.Sprintf("%T", req))
		if rec.Kind() == ldap.KindRename {
			if newDN, err := ldap.RenamedDN(rec); err == nil {
				ev = ev.Str("new_dn", newDN)
			}
		}
		ev.Msg("Record valid")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "records: %d\n", total)
	for _, k := range kinds {
		if counts[k] > 0 {
			fmt.Fprintf(out, "  %s: %d\n", k, counts[k])
		}
	}
	fmt.Fprintf(out, "invalid: %d\n", invalid)

	if invalid > 0 {
		return fmt.Errorf("%d of %d records invalid: %w", invalid, total, firstErr)
	}
	return nil
}
