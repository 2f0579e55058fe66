// SPDX-License-Identifier: Apache-2.0

package flags

import (
	"github.com/spf13/viper"
)

func ConnectionString() string {
	return viper.GetString("CONNECTION_STRING")
}

func Verbose() bool {
	return viper.GetBool("VERBOSE")
}

func MaxLength() int {
	return viper.GetInt("MAX_LENGTH")
}

func StrictLength() bool {
	return viper.GetBool("STRICT_LENGTH")
}
