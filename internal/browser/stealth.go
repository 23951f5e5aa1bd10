package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// preludeScript runs before any page script and pins the navigator surface
// to values a typical human browser reports. go-rod/stealth covers the
// long tail of evasions; this adds the overrides the login page is known
// to inspect.
const preludeScript = `
(function() {
    'use strict';

    // navigator.webdriver must be undefined, not false.
    Object.defineProperty(navigator, 'webdriver', {
        get: () => undefined,
        configurable: true
    });
    try {
        delete Object.getPrototypeOf(navigator).webdriver;
    } catch (e) {}

    // Headless Chrome ships an empty plugin list.
    try {
        const mockPlugins = [
            { name: 'Chrome PDF Plugin', description: 'Portable Document Format', filename: 'internal-pdf-viewer' },
            { name: 'Chrome PDF Viewer', description: '', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
            { name: 'Native Client', description: '', filename: 'internal-nacl-plugin' }
        ];
        const pluginArray = Object.create(PluginArray.prototype);
        mockPlugins.forEach((p, i) => {
            const plugin = Object.create(Plugin.prototype);
            Object.defineProperties(plugin, {
                name: { value: p.name, enumerable: true },
                description: { value: p.description, enumerable: true },
                filename: { value: p.filename, enumerable: true }
            });
            pluginArray[i] = plugin;
            pluginArray[p.name] = plugin;
        });
        Object.defineProperty(pluginArray, 'length', { value: mockPlugins.length });
        Object.defineProperty(pluginArray, 'item', { value: (i) => pluginArray[i] || null });
        Object.defineProperty(pluginArray, 'namedItem', { value: (n) => pluginArray[n] || null });
        Object.defineProperty(navigator, 'plugins', {
            get: () => pluginArray,
            configurable: true
        });
    } catch (e) {}

    Object.defineProperty(navigator, 'languages', {
        get: () => Object.freeze(['en-US', 'en']),
        configurable: true
    });

    Object.defineProperty(navigator, 'platform', {
        get: () => 'Win32',
        configurable: true
    });

    if (!window.chrome) {
        Object.defineProperty(window, 'chrome', {
            value: { runtime: {} },
            writable: true,
            enumerable: true,
            configurable: false
        });
    }
})();
`

// newStealthPage creates a page with go-rod/stealth evasions plus the
// prelude above applied before any navigation.
func newStealthPage(b *rod.Browser) (*rod.Page, error) {
	page, err := stealth.Page(b)
	if err != nil {
		return nil, err
	}

	if _, err := page.EvalOnNewDocument(preludeScript); err != nil {
		_ = page.Close()
		return nil, err
	}

	return page, nil
}
