package criteria

import (
	"github.com/viant/facilitor/service/dao"
)

// Matches reports whether a record field value satisfies the supplied
// filtering parameters.  An empty parameter list matches everything.
func Matches(name, value string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != name {
			continue
		}
		switch actual := parameter.Value.(type) {
		case string:
			if value != actual {
				return false
			}
		case []string:
			matched := false
			for _, candidate := range actual {
				if value == candidate {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}
	return true
}
