// Package fingerprint builds the per-session browser identity.
//
// A Profile is generated once from presets that are known to agree with one
// another (OS, GPU, client hints, screen) and is never modified afterwards.
package fingerprint

import (
	"fmt"
	"math/rand/v2"
	"strings"

	errs "pinrunner/pkg/errors"
)

// Profile is a coherent set of signals surfaced to page script and peers
type Profile struct {
	UserAgent       string      `json:"user_agent"`
	Brands          [][2]string `json:"brands"`
	FullVersionList [][2]string `json:"full_version_list"`
	ChromeMajor     string      `json:"chrome_major"`
	// Platform is the client hints platform, e.g. "Windows"
	Platform          string `json:"platform"`
	PlatformVersion   string `json:"platform_version"`
	Architecture      string `json:"architecture"`
	Bitness           string `json:"bitness"`
	NavigatorPlatform string `json:"navigator_platform"`
	OSFamily          string `json:"os_family"`

	Locale         string   `json:"locale"`
	Languages      []string `json:"languages"`
	AcceptLanguage string   `json:"accept_language"`
	Timezone       string   `json:"timezone"`

	ScreenWidth       int     `json:"screen_width"`
	ScreenHeight      int     `json:"screen_height"`
	ViewportWidth     int     `json:"viewport_width"`
	ViewportHeight    int     `json:"viewport_height"`
	DeviceScaleFactor float64 `json:"device_scale_factor"`
	ColorDepth        int     `json:"color_depth"`

	HardwareConcurrency int `json:"hardware_concurrency"`
	DeviceMemory        int `json:"device_memory"`

	WebGLVendor   string `json:"webgl_vendor"`
	WebGLRenderer string `json:"webgl_renderer"`

	Plugins []Plugin `json:"plugins"`

	NoiseSeed uint32 `json:"noise_seed"`
	// NoiseAmplitude bounds the per-channel pixel perturbation
	NoiseAmplitude int `json:"noise_amplitude"`
}

// Plugin is one entry of navigator.plugins
type Plugin struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

// Options narrows profile generation
type Options struct {
	// Device must be empty or "desktop"
	Device string
	// Platform is "windows", "macos", "linux" or empty for random
	Platform     string
	Locale       string
	Timezone     string
	ProxyCountry string
	// Seed makes generation deterministic when non-zero
	Seed uint64
}

type gpuPreset struct {
	vendor   string
	renderer string
}

type platformPreset struct {
	key               string
	family            string
	uaOS              string
	navigatorPlatform string
	chPlatform        string
	chPlatformVersion string
	architecture      string
	gpus              []gpuPreset
	scaleFactors      []float64
}

var platformPresets = []platformPreset{
	{
		key:               "windows",
		family:            "windows",
		uaOS:              "Windows NT 10.0; Win64; x64",
		navigatorPlatform: "Win32",
		chPlatform:        "Windows",
		chPlatformVersion: "15.0.0",
		architecture:      "x86",
		gpus: []gpuPreset{
			{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) Iris(R) Xe Graphics Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon RX 6600 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		},
		scaleFactors: []float64{1, 1, 1.25},
	},
	{
		key:               "macos",
		family:            "mac",
		uaOS:              "Macintosh; Intel Mac OS X 10_15_7",
		navigatorPlatform: "MacIntel",
		chPlatform:        "macOS",
		chPlatformVersion: "14.5.0",
		architecture:      "arm",
		gpus: []gpuPreset{
			{"Google Inc. (Apple)", "ANGLE (Apple, ANGLE Metal Renderer: Apple M1, Unspecified Version)"},
			{"Google Inc. (Apple)", "ANGLE (Apple, ANGLE Metal Renderer: Apple M2, Unspecified Version)"},
		},
		scaleFactors: []float64{2},
	},
	{
		key:               "linux",
		family:            "linux",
		uaOS:              "X11; Linux x86_64",
		navigatorPlatform: "Linux x86_64",
		chPlatform:        "Linux",
		chPlatformVersion: "6.5.0",
		architecture:      "x86",
		gpus: []gpuPreset{
			{"Google Inc. (Intel)", "ANGLE (Intel, Mesa Intel(R) UHD Graphics 620 (KBL GT2), OpenGL 4.6)"},
			{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon Graphics (radeonsi, renoir, LLVM 15.0.7), OpenGL 4.6)"},
		},
		scaleFactors: []float64{1},
	},
}

type screenPreset struct {
	width  int
	height int
}

var screenPresets = []screenPreset{
	{1920, 1080},
	{2560, 1440},
	{1536, 864},
	{1680, 1050},
	{1440, 900},
}

type chromeVersion struct {
	major string
	full  string
}

var chromeVersions = []chromeVersion{
	{"128", "128.0.6613.138"},
	{"129", "129.0.6668.100"},
	{"130", "130.0.6723.117"},
	{"131", "131.0.6778.86"},
}

var (
	hardwareConcurrencies = []int{4, 8, 12, 16}
	deviceMemories        = []int{4, 8}
	greaseBrands          = []string{"Not A(Brand", "Not/A)Brand", "Not_A Brand"}
)

// Chrome ships the same five PDF viewer entries on every desktop platform
var defaultPlugins = []Plugin{
	{"PDF Viewer", "internal-pdf-viewer", "Portable Document Format"},
	{"Chrome PDF Viewer", "internal-pdf-viewer", "Portable Document Format"},
	{"Chromium PDF Viewer", "internal-pdf-viewer", "Portable Document Format"},
	{"Microsoft Edge PDF Viewer", "internal-pdf-viewer", "Portable Document Format"},
	{"WebKit built-in PDF", "internal-pdf-viewer", "Portable Document Format"},
}

// browser chrome eats this much of the screen height
const chromeUIHeight = 120

// Generate builds a randomized but internally consistent desktop profile
func Generate(opts Options) (*Profile, error) {
	if opts.Device != "" && !strings.EqualFold(opts.Device, "desktop") {
		return nil, errs.New(errs.KindValidation, "unsupported device class %q: only desktop is supported", opts.Device)
	}

	locale := opts.Locale
	if locale == "" {
		locale = "en-US"
	}
	timezone := opts.Timezone
	if timezone == "" {
		timezone = "America/New_York"
	}
	if err := CheckGeo(locale, timezone, opts.ProxyCountry); err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "inconsistent locale and egress")
	}

	var rng *rand.Rand
	if opts.Seed != 0 {
		rng = rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	var plat platformPreset
	if opts.Platform == "" {
		plat = platformPresets[rng.IntN(len(platformPresets))]
	} else {
		found := false
		for _, p := range platformPresets {
			if strings.EqualFold(p.key, opts.Platform) {
				plat, found = p, true
				break
			}
		}
		if !found {
			return nil, errs.New(errs.KindValidation, "unknown platform %q", opts.Platform)
		}
	}

	gpu := plat.gpus[rng.IntN(len(plat.gpus))]
	scr := screenPresets[rng.IntN(len(screenPresets))]
	ver := chromeVersions[rng.IntN(len(chromeVersions))]
	grease := greaseBrands[rng.IntN(len(greaseBrands))]

	ua := fmt.Sprintf(
		"Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s.0.0.0 Safari/537.36",
		plat.uaOS, ver.major,
	)

	languages := languagesFor(locale)
	p := &Profile{
		UserAgent:   ua,
		ChromeMajor: ver.major,
		Brands: [][2]string{
			{grease, "8"},
			{"Chromium", ver.major},
			{"Google Chrome", ver.major},
		},
		FullVersionList: [][2]string{
			{grease, "8.0.0.0"},
			{"Chromium", ver.full},
			{"Google Chrome", ver.full},
		},
		Platform:            plat.chPlatform,
		PlatformVersion:     plat.chPlatformVersion,
		Architecture:        plat.architecture,
		Bitness:             "64",
		NavigatorPlatform:   plat.navigatorPlatform,
		OSFamily:            plat.family,
		Locale:              locale,
		Languages:           languages,
		AcceptLanguage:      acceptLanguage(languages),
		Timezone:            timezone,
		ScreenWidth:         scr.width,
		ScreenHeight:        scr.height,
		ViewportWidth:       scr.width,
		ViewportHeight:      scr.height - chromeUIHeight,
		DeviceScaleFactor:   plat.scaleFactors[rng.IntN(len(plat.scaleFactors))],
		ColorDepth:          24,
		HardwareConcurrency: hardwareConcurrencies[rng.IntN(len(hardwareConcurrencies))],
		DeviceMemory:        deviceMemories[rng.IntN(len(deviceMemories))],
		WebGLVendor:         gpu.vendor,
		WebGLRenderer:       gpu.renderer,
		Plugins:             append([]Plugin(nil), defaultPlugins...),
		NoiseSeed:           rng.Uint32() | 1,
		NoiseAmplitude:      1 + rng.IntN(2),
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the cross-signal invariants
func (p *Profile) Validate() error {
	var problems []string

	if p.ViewportWidth > p.ScreenWidth || p.ViewportHeight > p.ScreenHeight {
		problems = append(problems, "viewport exceeds screen")
	}
	if p.ViewportWidth <= 0 || p.ViewportHeight <= 0 {
		problems = append(problems, "viewport is empty")
	}

	var plat *platformPreset
	for i := range platformPresets {
		if platformPresets[i].chPlatform == p.Platform {
			plat = &platformPresets[i]
			break
		}
	}
	if plat == nil {
		problems = append(problems, fmt.Sprintf("unknown client hints platform %q", p.Platform))
	} else {
		if !strings.Contains(p.UserAgent, plat.uaOS) {
			problems = append(problems, "user agent OS disagrees with client hints platform")
		}
		if p.NavigatorPlatform != plat.navigatorPlatform {
			problems = append(problems, "navigator.platform disagrees with client hints platform")
		}
		gpuOK := false
		for _, g := range plat.gpus {
			if g.renderer == p.WebGLRenderer && g.vendor == p.WebGLVendor {
				gpuOK = true
				break
			}
		}
		if !gpuOK {
			problems = append(problems, "GPU strings do not belong to the declared OS")
		}
	}

	if !strings.Contains(p.UserAgent, "Chrome/"+p.ChromeMajor+".") {
		problems = append(problems, "user agent version disagrees with brands")
	}
	for _, b := range p.Brands {
		if strings.Contains(b[0], "Chrome") && b[1] != p.ChromeMajor {
			problems = append(problems, "brand version disagrees with user agent")
		}
	}
	if len(p.Languages) == 0 || p.Languages[0] != p.Locale {
		problems = append(problems, "language list must start with the locale")
	}
	if p.Timezone == "" {
		problems = append(problems, "timezone is required")
	}
	if len(p.Plugins) == 0 {
		problems = append(problems, "plugin inventory is empty")
	}
	if p.NoiseAmplitude < 1 || p.NoiseAmplitude > 3 {
		problems = append(problems, "noise amplitude out of bounds")
	}

	if len(problems) > 0 {
		return errs.New(errs.KindValidation, "inconsistent fingerprint: %s", strings.Join(problems, "; "))
	}
	return nil
}

// languagesFor expands a locale into a navigator.languages list
func languagesFor(locale string) []string {
	langs := []string{locale}
	if base, _, ok := strings.Cut(locale, "-"); ok {
		langs = append(langs, base)
	}
	if !strings.HasPrefix(locale, "en") {
		langs = append(langs, "en-US", "en")
	}
	return langs
}

func acceptLanguage(langs []string) string {
	parts := make([]string, len(langs))
	for i, l := range langs {
		if i == 0 {
			parts[i] = l
			continue
		}
		q := 1.0 - float64(i)*0.1
		if q < 0.5 {
			q = 0.5
		}
		parts[i] = fmt.Sprintf("%s;q=%.1f", l, q)
	}
	return strings.Join(parts, ",")
}
