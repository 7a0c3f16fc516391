package od

import (
	"fmt"
	"io"
	"strconv"

	"gopkg.in/ini.v1"
)

// Device information written to exported EDS files
type DeviceInfo struct {
	VendorName  string
	ProductName string
	FileName    string
}

var DefaultDeviceInfo = DeviceInfo{
	VendorName:  "thermsdo",
	ProductName: "DS1621 SDO thermometer",
	FileName:    "thermsdo.eds",
}

// Export OD as an EDS (ini) document.
// The created file is not 100% compliant with CiA 306 but is enough
// for a generic SDO browser to discover the objects.
func Export(odict *ObjectDictionary, info DeviceInfo) (*ini.File, error) {
	eds := ini.Empty()

	fileInfo, err := eds.NewSection("FileInfo")
	if err != nil {
		return nil, err
	}
	if err = addKeys(fileInfo, [][2]string{
		{"FileName", info.FileName},
		{"FileVersion", "1"},
		{"EDSVersion", "4.0"},
		{"Description", info.ProductName},
	}); err != nil {
		return nil, err
	}
	deviceInfo, err := eds.NewSection("DeviceInfo")
	if err != nil {
		return nil, err
	}
	if err = addKeys(deviceInfo, [][2]string{
		{"VendorName", info.VendorName},
		{"ProductName", info.ProductName},
		{"BaudRate_1000", "1"},
		{"SimpleBootUpSlave", "1"},
		{"Granularity", "0"},
		{"NrOfRXPDO", "0"},
		{"NrOfTXPDO", "0"},
	}); err != nil {
		return nil, err
	}

	// Objects are listed per CiA 306 category
	var mandatory, manufacturer, optional []uint16
	for _, index := range odict.Indexes() {
		switch {
		case index == IndexDeviceType:
			mandatory = append(mandatory, index)
		case index >= 0x2000 && index < 0x6000:
			manufacturer = append(manufacturer, index)
		default:
			optional = append(optional, index)
		}
	}
	for _, category := range []struct {
		name    string
		indexes []uint16
	}{
		{"MandatoryObjects", mandatory},
		{"OptionalObjects", optional},
		{"ManufacturerObjects", manufacturer},
	} {
		section, err := eds.NewSection(category.name)
		if err != nil {
			return nil, err
		}
		if _, err = section.NewKey("SupportedObjects", strconv.Itoa(len(category.indexes))); err != nil {
			return nil, err
		}
		for i, index := range category.indexes {
			if _, err = section.NewKey(strconv.Itoa(i+1), fmt.Sprintf("0x%04X", index)); err != nil {
				return nil, err
			}
		}
	}

	for _, index := range odict.Indexes() {
		entry := odict.Index(index)
		sectionName := fmt.Sprintf("%04X", index)
		if entry.ObjectType == ObjectTypeVAR {
			variable, err := entry.SubIndex(0)
			if err != nil {
				return nil, fmt.Errorf("[OD] expecting a variable at x%x : %w", index, err)
			}
			section, err := eds.NewSection(sectionName)
			if err != nil {
				return nil, err
			}
			err = populateSection(section, index, variable)
			if err != nil {
				return nil, fmt.Errorf("[OD] error populating section index at x%x : %w", index, err)
			}
			continue
		}
		// Create header section
		section, err := eds.NewSection(sectionName)
		if err != nil {
			return nil, err
		}
		err = populateHeaderSection(section, entry.Name, entry.ObjectType, uint8(entry.SubCount()))
		if err != nil {
			return nil, err
		}
		// Add all subsections, ordered
		for _, sub := range entry.subIndexes() {
			section, err = eds.NewSection(fmt.Sprintf("%ssub%X", sectionName, sub))
			if err != nil {
				return nil, err
			}
			err = populateSection(section, index, entry.variables[sub])
			if err != nil {
				return nil, fmt.Errorf("[OD] error populating section index at x%x|x%x : %w", index, sub, err)
			}
		}
	}
	return eds, nil
}

// ExportEDS writes the EDS representation of odict to w
func ExportEDS(odict *ObjectDictionary, info DeviceInfo, w io.Writer) error {
	eds, err := Export(odict, info)
	if err != nil {
		return err
	}
	_, err = eds.WriteTo(w)
	return err
}

// ExportEDSFile writes the EDS representation of odict to filename
func ExportEDSFile(odict *ObjectDictionary, info DeviceInfo, filename string) error {
	eds, err := Export(odict, info)
	if err != nil {
		return err
	}
	return eds.SaveTo(filename)
}

func addKeys(section *ini.Section, keys [][2]string) error {
	for _, kv := range keys {
		if _, err := section.NewKey(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// Populate section with relevant information for a variable type
func populateSection(section *ini.Section, index uint16, variable *Variable) error {
	decoded, err := variable.DefaultValue()
	if err != nil {
		return err
	}
	if index >= 0x1000 && index <= 0x1FFF {
		// Write communication values as hex strings, facilitates reading
		parsed, err := strconv.ParseUint(decoded, 10, 32)
		if err == nil {
			decoded = "0x" + strconv.FormatUint(parsed, 16)
		}
	}
	pdoMapping := "0"
	if variable.Attribute&AttributeTpdo != 0 {
		pdoMapping = "1"
	}
	return addKeys(section, [][2]string{
		{"ParameterName", variable.Name},
		{"ObjectType", "0x" + strconv.FormatUint(uint64(ObjectTypeVAR), 16)},
		{"DataType", "0x" + strconv.FormatUint(uint64(variable.DataType), 16)},
		{"AccessType", DecodeAttribute(variable.Attribute)},
		{"DefaultValue", decoded},
		{"PDOMapping", pdoMapping},
	})
}

// Populate section with relevant information for beginning of RECORD type.
// e.g.
// [6000]
// ParameterName=Temperature
// ObjectType=0x9
// SubNumber=0x3
func populateHeaderSection(section *ini.Section, name string, objectType uint8, count uint8) error {
	return addKeys(section, [][2]string{
		{"ParameterName", name},
		{"ObjectType", "0x" + strconv.FormatUint(uint64(objectType), 16)},
		{"SubNumber", "0x" + strconv.FormatUint(uint64(count), 16)},
	})
}
