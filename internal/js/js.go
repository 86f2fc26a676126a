package js

// Element scripts run with `this` bound to the element.

var SCROLL_CENTER string = `
() => {
    this.scrollIntoView({block: 'center'});
}
`

// Scrolls the consent link into view and clicks it through the DOM, so an
// overlay on top of it cannot intercept the click.
var CLICK_CONSENT string = `
() => {
    this.scrollIntoView(true);
    this.click();
}
`

// Page scripts.

var SET_ZOOM string = `
(level) => {
    document.body.style.zoom = level;
}
`

var CONTENT_READY string = `
() => document.readyState === 'complete'
`
