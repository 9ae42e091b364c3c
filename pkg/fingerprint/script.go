package fingerprint

import (
	"encoding/json"
	"strings"
)

// jsProfile is the subset of the profile the page patch needs
type jsProfile struct {
	UserAgent           string      `json:"userAgent"`
	Brands              [][2]string `json:"brands"`
	FullVersionList     [][2]string `json:"fullVersionList"`
	Platform            string      `json:"platform"`
	PlatformVersion     string      `json:"platformVersion"`
	Architecture        string      `json:"architecture"`
	Bitness             string      `json:"bitness"`
	NavigatorPlatform   string      `json:"navigatorPlatform"`
	Languages           []string    `json:"languages"`
	Timezone            string      `json:"timezone"`
	ScreenWidth         int         `json:"screenWidth"`
	ScreenHeight        int         `json:"screenHeight"`
	DeviceScaleFactor   float64     `json:"dpr"`
	ColorDepth          int         `json:"colorDepth"`
	HardwareConcurrency int         `json:"hardwareConcurrency"`
	DeviceMemory        int         `json:"deviceMemory"`
	WebGLVendor         string      `json:"webglVendor"`
	WebGLRenderer       string      `json:"webglRenderer"`
	Plugins             []Plugin    `json:"plugins"`
	NoiseSeed           uint32      `json:"noiseSeed"`
	NoiseAmplitude      int         `json:"noiseAmplitude"`
}

const profilePlaceholder = "__PINRUNNER_PROFILE__"

// patchSource runs in every document and is re-run at the top of every
// dedicated worker via the Worker wrapper. Each section guards on the globals
// it touches because workers lack window, screen and canvas elements.
const patchSource = `(() => {
  const fp = __PINRUNNER_PROFILE__;
  const patch = function (fp) {
    const define = (obj, prop, value) => {
      try {
        Object.defineProperty(obj, prop, { get: () => value, configurable: true, enumerable: true });
      } catch (e) {}
    };
    const nav = typeof Navigator !== 'undefined' ? Navigator.prototype
      : (typeof WorkerNavigator !== 'undefined' ? WorkerNavigator.prototype : null);

    if (nav) {
      define(nav, 'webdriver', false);
      define(nav, 'userAgent', fp.userAgent);
      define(nav, 'appVersion', fp.userAgent.replace(/^Mozilla\//, ''));
      define(nav, 'platform', fp.navigatorPlatform);
      define(nav, 'language', fp.languages[0]);
      define(nav, 'languages', Object.freeze(fp.languages.slice()));
      define(nav, 'hardwareConcurrency', fp.hardwareConcurrency);
      define(nav, 'deviceMemory', fp.deviceMemory);

      const brands = fp.brands.map(([brand, version]) => ({ brand, version }));
      const uaData = {
        brands,
        mobile: false,
        platform: fp.platform,
        getHighEntropyValues: (hints) => Promise.resolve({
          brands,
          mobile: false,
          platform: fp.platform,
          platformVersion: fp.platformVersion,
          architecture: fp.architecture,
          bitness: fp.bitness,
          model: '',
          uaFullVersion: fp.fullVersionList[2][1],
          fullVersionList: fp.fullVersionList.map(([brand, version]) => ({ brand, version })),
          wow64: false,
        }),
        toJSON: () => ({ brands, mobile: false, platform: fp.platform }),
      };
      define(nav, 'userAgentData', uaData);
    }

    if (typeof Screen !== 'undefined') {
      define(Screen.prototype, 'width', fp.screenWidth);
      define(Screen.prototype, 'height', fp.screenHeight);
      define(Screen.prototype, 'availWidth', fp.screenWidth);
      define(Screen.prototype, 'availHeight', fp.screenHeight - 40);
      define(Screen.prototype, 'colorDepth', fp.colorDepth);
      define(Screen.prototype, 'pixelDepth', fp.colorDepth);
    }
    if (typeof window !== 'undefined') {
      define(window, 'devicePixelRatio', fp.dpr);
      define(window, 'outerWidth', fp.screenWidth);
      define(window, 'outerHeight', fp.screenHeight - 40);
    }

    if (typeof Navigator !== 'undefined' && typeof PluginArray !== 'undefined') {
      const mime = { type: 'application/pdf', suffixes: 'pdf', description: 'Portable Document Format' };
      const plugins = fp.plugins.map((p) => Object.assign(Object.create(Plugin.prototype), {
        name: p.name, filename: p.filename, description: p.description, length: 1, 0: mime,
      }));
      const arr = Object.create(PluginArray.prototype);
      plugins.forEach((p, i) => { arr[i] = p; arr[p.name] = p; });
      define(arr, 'length', plugins.length);
      arr.item = (i) => plugins[i] || null;
      arr.namedItem = (n) => plugins.find((p) => p.name === n) || null;
      arr.refresh = () => {};
      define(Navigator.prototype, 'plugins', arr);

      const mimes = Object.create(MimeTypeArray.prototype);
      const m = Object.assign(Object.create(MimeType.prototype), mime, { enabledPlugin: plugins[0] });
      mimes[0] = m;
      mimes['application/pdf'] = m;
      define(mimes, 'length', 1);
      mimes.item = (i) => (i === 0 ? m : null);
      mimes.namedItem = (n) => (n === 'application/pdf' ? m : null);
      define(Navigator.prototype, 'mimeTypes', mimes);
      define(Navigator.prototype, 'pdfViewerEnabled', true);
    }

    // mulberry32 keyed by the session seed: same distribution for the whole
    // session, different values on every readback
    let state = fp.noiseSeed >>> 0;
    const rand = () => {
      state = (state + 0x6D2B79F5) >>> 0;
      let t = state;
      t = Math.imul(t ^ (t >>> 15), t | 1);
      t ^= t + Math.imul(t ^ (t >>> 7), t | 61);
      return ((t ^ (t >>> 14)) >>> 0) / 4294967296;
    };
    const amp = fp.noiseAmplitude;
    const noise = (data) => {
      for (let i = 0; i < data.length; i += 4) {
        for (let c = 0; c < 3; c++) {
          const d = Math.floor(rand() * (2 * amp + 1)) - amp;
          const v = data[i + c] + d;
          data[i + c] = v < 0 ? 0 : (v > 255 ? 255 : v);
        }
      }
      return data;
    };

    const ctx2d = typeof CanvasRenderingContext2D !== 'undefined' ? CanvasRenderingContext2D.prototype
      : (typeof OffscreenCanvasRenderingContext2D !== 'undefined' ? OffscreenCanvasRenderingContext2D.prototype : null);
    if (ctx2d) {
      const getImageData = ctx2d.getImageData;
      ctx2d.getImageData = function () {
        const img = getImageData.apply(this, arguments);
        noise(img.data);
        return img;
      };
    }
    if (typeof HTMLCanvasElement !== 'undefined') {
      const noisyCopy = (canvas) => {
        const copy = document.createElement('canvas');
        copy.width = canvas.width;
        copy.height = canvas.height;
        const cctx = copy.getContext('2d');
        if (!cctx || !canvas.width || !canvas.height) return canvas;
        cctx.drawImage(canvas, 0, 0);
        const img = cctx.getImageData(0, 0, copy.width, copy.height);
        cctx.putImageData(img, 0, 0);
        return copy;
      };
      const toDataURL = HTMLCanvasElement.prototype.toDataURL;
      HTMLCanvasElement.prototype.toDataURL = function () {
        return toDataURL.apply(noisyCopy(this), arguments);
      };
      const toBlob = HTMLCanvasElement.prototype.toBlob;
      HTMLCanvasElement.prototype.toBlob = function () {
        return toBlob.apply(noisyCopy(this), arguments);
      };
    }

    const patchGL = (proto) => {
      if (!proto) return;
      const getParameter = proto.getParameter;
      proto.getParameter = function (p) {
        if (p === 37445) return fp.webglVendor;
        if (p === 37446) return fp.webglRenderer;
        return getParameter.apply(this, arguments);
      };
      const readPixels = proto.readPixels;
      proto.readPixels = function () {
        const out = readPixels.apply(this, arguments);
        const pixels = arguments[6];
        if (pixels && pixels.length) noise(pixels);
        return out;
      };
    };
    if (typeof WebGLRenderingContext !== 'undefined') patchGL(WebGLRenderingContext.prototype);
    if (typeof WebGL2RenderingContext !== 'undefined') patchGL(WebGL2RenderingContext.prototype);

    if (typeof Intl !== 'undefined' && Intl.DateTimeFormat) {
      const resolvedOptions = Intl.DateTimeFormat.prototype.resolvedOptions;
      Intl.DateTimeFormat.prototype.resolvedOptions = function () {
        const r = resolvedOptions.apply(this, arguments);
        r.timeZone = fp.timezone;
        return r;
      };
    }
  };

  patch(fp);

  if (typeof window !== 'undefined' && typeof window.Worker === 'function') {
    const NativeWorker = window.Worker;
    const boot = '(' + patch.toString() + ')(' + JSON.stringify(fp) + ');';
    const Wrapped = function (url, options) {
      if (!(options && options.type === 'module')) {
        try {
          const abs = new URL(url, location.href).href;
          const src = boot + 'importScripts(' + JSON.stringify(abs) + ');';
          const blobURL = URL.createObjectURL(new Blob([src], { type: 'text/javascript' }));
          return new NativeWorker(blobURL, options);
        } catch (e) {}
      }
      return new NativeWorker(url, options);
    };
    Wrapped.prototype = NativeWorker.prototype;
    Object.defineProperty(Wrapped, 'name', { value: 'Worker' });
    window.Worker = Wrapped;
  }
})();`

// Script renders the pre-navigation patch with this profile's values
func (p *Profile) Script() string {
	data, err := json.Marshal(jsProfile{
		UserAgent:           p.UserAgent,
		Brands:              p.Brands,
		FullVersionList:     p.FullVersionList,
		Platform:            p.Platform,
		PlatformVersion:     p.PlatformVersion,
		Architecture:        p.Architecture,
		Bitness:             p.Bitness,
		NavigatorPlatform:   p.NavigatorPlatform,
		Languages:           p.Languages,
		Timezone:            p.Timezone,
		ScreenWidth:         p.ScreenWidth,
		ScreenHeight:        p.ScreenHeight,
		DeviceScaleFactor:   p.DeviceScaleFactor,
		ColorDepth:          p.ColorDepth,
		HardwareConcurrency: p.HardwareConcurrency,
		DeviceMemory:        p.DeviceMemory,
		WebGLVendor:         p.WebGLVendor,
		WebGLRenderer:       p.WebGLRenderer,
		Plugins:             p.Plugins,
		NoiseSeed:           p.NoiseSeed,
		NoiseAmplitude:      p.NoiseAmplitude,
	})
	if err != nil {
		// every field is a plain value; Marshal cannot fail here
		panic(err)
	}
	return strings.Replace(patchSource, profilePlaceholder, string(data), 1)
}

// UserAgentOverride is what the driver needs for the network-level override
type UserAgentOverride struct {
	UserAgent       string
	AcceptLanguage  string
	Platform        string
	PlatformVersion string
	Architecture    string
	Bitness         string
	Brands          [][2]string
	FullVersionList [][2]string
	FullVersion     string
}

// UserAgentOverride returns header and client hint values matching the page patch
func (p *Profile) UserAgentOverride() UserAgentOverride {
	full := ""
	if n := len(p.FullVersionList); n > 0 {
		full = p.FullVersionList[n-1][1]
	}
	return UserAgentOverride{
		UserAgent:       p.UserAgent,
		AcceptLanguage:  p.AcceptLanguage,
		Platform:        p.Platform,
		PlatformVersion: p.PlatformVersion,
		Architecture:    p.Architecture,
		Bitness:         p.Bitness,
		Brands:          p.Brands,
		FullVersionList: p.FullVersionList,
		FullVersion:     full,
	}
}
