// SPDX-License-Identifier: Apache-2.0

package cmd

import "errors"

var errInvalidOutputFormat = errors.New("invalid output format, expected json or yaml")
