package core

import (
	"fmt"

	"github.com/fatih/color"
)

const VERSION = "1.2.0"

func putAsciiArt(s string) {
	for _, c := range s {
		d := string(c)
		switch c {
		case '_', '|', '\\', '/', '(', ')':
			color.Set(color.FgHiRed)
		default:
			color.Set(color.FgHiWhite)
		}
		fmt.Print(d)
		color.Unset()
	}
}

func printLogo(s string) {
	putAsciiArt(s)
}

func printUpdateName() {
	nameClr := color.New(color.FgHiRed)
	txt := nameClr.Sprintf("                   ironclad")
	fmt.Fprintf(color.Output, "%s", txt)
}

func printOneliner() {
	handleClr := color.New(color.FgHiBlue)
	versionClr := color.New(color.FgGreen)
	textClr := color.New(color.FgHiBlack)
	spc := "                    "
	txt := textClr.Sprintf("%sby TitanOps (", spc) + handleClr.Sprintf("@titanops") + textClr.Sprintf(")") + spc + textClr.Sprintf("version ") + versionClr.Sprintf("%s", VERSION)
	fmt.Fprintf(color.Output, "%s", txt)
}

func Banner() {
	fmt.Println()
	printLogo("   __  _  __                \n")
	printLogo("  / /_(_)/ /_____ _ ____    \n")
	printLogo(" / __/ // __/ __ `// __ \\  \n")
	printLogo("/ /_/ // /_/ /_/ // / / /   \n")
	printLogo("\\__/_/ \\__/\\__,_//_/ /_/ \n")
	printUpdateName()
	fmt.Println()
	printOneliner()
	fmt.Println()
	fmt.Println()
}
