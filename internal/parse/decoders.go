package parse

// Controller capability masks are power-of-two bitsets logged as plain
// integers. Each platform has one table for capture and one for input.
// Decoding is pure: unknown bits are ignored, and a mask with no known bits
// (including zero) decodes to ["Unknown"] so the output list is never empty.

type maskBit struct {
	bit  uint64
	name string
}

var adbScreencapBits = []maskBit{
	{1, "EncodeToFileAndPull"},
	{2, "Encode"},
	{4, "RawWithGzip"},
	{8, "RawByNetcat"},
	{16, "MinicapDirect"},
	{32, "MinicapStream"},
	{64, "EmulatorExtras"},
}

var adbInputBits = []maskBit{
	{1, "AdbShell"},
	{2, "MinitouchAndAdbKey"},
	{4, "Maatouch"},
	{8, "EmulatorExtras"},
}

var win32ScreencapBits = []maskBit{
	{1, "GDI"},
	{2, "FramePool"},
	{4, "DXGIDesktopDup"},
}

var win32InputBits = []maskBit{
	{1, "Seize"},
	{2, "SendMessage"},
}

func decodeMask(mask uint64, table []maskBit) []string {
	var names []string
	for _, e := range table {
		if mask&e.bit != 0 {
			names = append(names, e.name)
		}
	}
	if len(names) == 0 {
		return []string{"Unknown"}
	}
	return names
}

// AdbScreencapMethods decodes an adb controller's capture-method mask.
func AdbScreencapMethods(mask uint64) []string { return decodeMask(mask, adbScreencapBits) }

// AdbInputMethods decodes an adb controller's input-method mask.
func AdbInputMethods(mask uint64) []string { return decodeMask(mask, adbInputBits) }

// Win32ScreencapMethods decodes a win32 controller's capture-method mask.
func Win32ScreencapMethods(mask uint64) []string { return decodeMask(mask, win32ScreencapBits) }

// Win32InputMethods decodes a win32 controller's input-method mask.
func Win32InputMethods(mask uint64) []string { return decodeMask(mask, win32InputBits) }
