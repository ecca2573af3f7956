// Command moonriderd runs the Moonrider daemon with the default
// configuration file. It is equivalent to `moonrider daemon`.
package main
