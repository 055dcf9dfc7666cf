package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// FlagLoader resolves settings with CLI flag precedence: an explicitly set
// flag wins, then a DIRCONV_* environment variable, then the config file
// value passed as fallback.
type FlagLoader struct {
	cmd *cobra.Command
	v   *viper.Viper
}

// NewFlagLoader creates a FlagLoader for the given cobra command.
func NewFlagLoader(cmd *cobra.Command, v *viper.Viper) *FlagLoader {
	return &FlagLoader{cmd: cmd, v: v}
}

// String returns the flag value if explicitly set, otherwise env or fallback.
func (f *FlagLoader) String(flagName, fallback string) string {
	if f.cmd.Flags().Changed(flagName) {
		val, _ := f.cmd.Flags().GetString(flagName)
		return val
	}
	if f.v.IsSet(flagName) {
		return f.v.GetString(flagName)
	}
	return fallback
}

// Int returns the flag value if explicitly set, otherwise env or fallback.
func (f *FlagLoader) Int(flagName string, fallback int) int {
	if f.cmd.Flags().Changed(flagName) {
		val, _ := f.cmd.Flags().GetInt(flagName)
		return val
	}
	if f.v.IsSet(flagName) {
		return f.v.GetInt(flagName)
	}
	return fallback
}

// Bool returns the flag value if explicitly set, otherwise env or fallback.
func (f *FlagLoader) Bool(flagName string, fallback bool) bool {
	if f.cmd.Flags().Changed(flagName) {
		val, _ := f.cmd.Flags().GetBool(flagName)
		return val
	}
	if f.v.IsSet(flagName) {
		return f.v.GetBool(flagName)
	}
	return fallback
}

// StringSlice returns the flag value if explicitly set, otherwise env or fallback.
func (f *FlagLoader) StringSlice(flagName string, fallback []string) []string {
	if f.cmd.Flags().Changed(flagName) {
		val, _ := f.cmd.Flags().GetStringSlice(flagName)
		return val
	}
	if f.v.IsSet(flagName) {
		return f.v.GetStringSlice(flagName)
	}
	return fallback
}
