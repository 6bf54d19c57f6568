package publisher

var VideoTitle = videoTitle
