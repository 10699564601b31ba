package container

const MaxLineSize = maxLineSize

var ScanBoundedLines = scanBoundedLines
