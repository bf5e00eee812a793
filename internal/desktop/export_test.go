package desktop

const MaxShownTags = maxShownTags
