//go:build windows

// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

// Groups that must not be granted access to signing keys, by SDDL
// abbreviation and full SID
var insecureSIDs = map[string]string{
	"WD":           "Everyone",
	"S-1-1-0":      "Everyone",
	"BU":           "BUILTIN\\Users",
	"S-1-5-32-545": "BUILTIN\\Users",
	"AU":           "Authenticated Users",
	"S-1-5-11":     "Authenticated Users",
}

// NTFS keeps an open file from being replaced, so checking by name is safe
func checkOpenFilePermissions(f *os.File) error {
	sd, err := windows.GetNamedSecurityInfo(
		f.Name(),
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION,
	)
	if err != nil {
		return fmt.Errorf("failed to get security info for %q: %w", f.Name(), err)
	}
	sddl := sd.String()
	if sddl == "" {
		return fmt.Errorf("failed to read security descriptor for %q", f.Name())
	}
	return checkSDDL(f.Name(), sddl)
}

// checkSDDL rejects a DACL that is missing or that allows one of the
// insecure groups
func checkSDDL(path, sddl string) error {
	daclIdx := strings.Index(sddl, "D:")
	if daclIdx < 0 {
		return fmt.Errorf(
			"key file %q has no DACL (unrestricted access): %w",
			path,
			ErrInsecureFileMode,
		)
	}
	daclStr := sddl[daclIdx+2:]
	if idx := strings.Index(daclStr, "S:"); idx >= 0 {
		daclStr = daclStr[:idx]
	}
	for {
		start := strings.IndexByte(daclStr, '(')
		if start < 0 {
			return nil
		}
		end := strings.IndexByte(daclStr[start:], ')')
		if end < 0 {
			return nil
		}
		// type;flags;rights;object;inherit;trustee
		fields := strings.Split(daclStr[start+1:start+end], ";")
		daclStr = daclStr[start+end+1:]
		if len(fields) < 6 || fields[0] != "A" {
			continue
		}
		if name, ok := insecureSIDs[fields[5]]; ok {
			return fmt.Errorf(
				"key file %q grants access to %s: %w",
				path,
				name,
				ErrInsecureFileMode,
			)
		}
	}
}
