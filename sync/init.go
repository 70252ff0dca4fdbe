package sync

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/biter777/countries"
	"github.com/tidwall/gjson"
	"github.com/ttacon/libphonenumber"
)

// Flavour identifies a source/target pairing.
type Flavour int

const (
	SQLServer2Mailchimp Flavour = iota
)

// initialisedFlavour stores the flavour set by Init.
// A nil value means Init has not been called.
var initialisedFlavour *Flavour

// registeredTransforms tracks the transform names registered by Init so
// configuration validation can reject unknown transforms up front.
var registeredTransforms = make(map[string]bool)

// mustBeInitialised panics if Init has not been called.
// This should be called at the entry points of the library
// to catch programming errors early.
func mustBeInitialised() Flavour {
	if initialisedFlavour == nil {
		panic("sync: Init() must be called before using this package")
	}
	return *initialisedFlavour
}

// GetInitialisedFlavour returns the flavour set by Init.
// Panics if Init has not been called.
func GetInitialisedFlavour() Flavour {
	return mustBeInitialised()
}

// IsRegisteredTransform reports whether name was registered by Init.
func IsRegisteredTransform(name string) bool {
	return registeredTransforms[name]
}

func addTransform(name string, fn func(json, arg string) string) {
	registeredTransforms[name] = true
	gjson.AddModifier(name, fn)
}

// Init registers the merge-field transforms for the given flavour.
// It must be called once before running a sync.
func Init(flavour Flavour) {

	f := flavour
	initialisedFlavour = &f

	if flavour == SQLServer2Mailchimp { // currently the only flavour, but structure allows for easy addition of new flavours in the future

		addTransform("toLower", func(json, arg string) string {
			res := gjson.Parse(json)
			if !res.Exists() {
				return ""
			}
			return fmt.Sprintf(`"%s"`, strings.ToLower(res.String()))
		})

		addTransform("toUpper", func(json, arg string) string {
			res := gjson.Parse(json)
			if !res.Exists() {
				return ""
			}
			return fmt.Sprintf(`"%s"`, strings.ToUpper(res.String()))
		})

		addTransform("date", func(json, arg string) string {
			res := gjson.Parse(json)
			if !res.Exists() {
				return ""
			}
			layout := arg
			if layout == "" {
				layout = "2006-01-02"
			}
			t, err := time.Parse(time.RFC3339, res.String())
			if err != nil {
				// source dates may arrive without a time component
				t, err = time.Parse("2006-01-02", res.String())
			}
			if err != nil {
				log.Printf("Warning: failed to parse date %q: %v (value sent unchanged)", res.String(), err)
				return json
			}
			return fmt.Sprintf(`"%s"`, t.Format(layout))
		})

		addTransform("countryName", func(json, arg string) string {
			s := gjson.Parse(json).String()
			c := countries.ByName(s) // will match on Alpha-2 / Alpha-3 / Name
			if countries.Unknown == c {
				return ""
			}
			return fmt.Sprintf(`"%s"`, c.String()) // returns Country Name

		})

		addTransform("phone", func(json, arg string) string {
			countryCode := arg
			number := gjson.Parse(json).String()
			// if present, remove extra " from number
			number = strings.Trim(number, `"`)
			// if the default country code is already present, keep the number as-is
			if !strings.HasPrefix(number, fmt.Sprintf("+%s", countryCode)) {
				i, err := strconv.Atoi(countryCode)
				if err == nil {
					var num *libphonenumber.PhoneNumber
					num, err = libphonenumber.Parse(number, libphonenumber.GetRegionCodeForCountryCode(i))
					if err == nil {
						countryCode = fmt.Sprintf("%d", num.GetCountryCode())
						number = fmt.Sprintf("+%s%s", countryCode, libphonenumber.GetNationalSignificantNumber(num))
					}
				}
				if err != nil {
					log.Printf("Warning: failed to parse phone number %q with country code %q: %v (value sent unchanged)", number, arg, err)
				}
			}

			return fmt.Sprintf(`"%s"`, number)
		})

	}

}
