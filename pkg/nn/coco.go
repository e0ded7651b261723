package nn

import "fmt"

const (
	COCOPerson       = 0
	COCOBicycle      = 1
	COCOCar          = 2
	COCOMotorcycle   = 3
	COCOAirplane     = 4
	COCOBus          = 5
	COCOTrain        = 6
	COCOTruck        = 7
	COCOBoat         = 8
	COCOTrafficLight = 9
	COCOFireHydrant  = 10
	COCOStopSign     = 11
	COCOParkingMeter = 12
	COCOBench        = 13
	COCOBird         = 14
	COCOCat          = 15
	COCODog          = 16
)

// COCO classes
var COCOClasses = []string{
	"person",
	"bicycle",
	"car",
	"motorcycle",
	"airplane",
	"bus",
	"train",
	"truck",
	"boat",
	"traffic light",
	"fire hydrant",
	"stop sign",
	"parking meter",
	"bench",
	"bird",
	"cat",
	"dog",
	"horse",
	"sheep",
	"cow",
	"elephant",
	"bear",
	"zebra",
	"giraffe",
	"backpack",
	"umbrella",
	"handbag",
	"tie",
	"suitcase",
	"frisbee",
	"skis",
	"snowboard",
	"sports ball",
	"kite",
	"baseball bat",
	"baseball glove",
	"skateboard",
	"surfboard",
	"tennis racket",
	"bottle",
	"wine glass",
	"cup",
	"fork",
	"knife",
	"spoon",
	"bowl",
	"banana",
	"apple",
	"sandwich",
	"orange",
	"broccoli",
	"carrot",
	"hot dog",
	"pizza",
	"donut",
	"cake",
	"chair",
	"couch",
	"potted plant",
	"bed",
	"dining table",
	"toilet",
	"tv",
	"laptop",
	"mouse",
	"remote",
	"keyboard",
	"cell phone",
	"microwave",
	"oven",
	"toaster",
	"sink",
	"refrigerator",
	"book",
	"clock",
	"vase",
	"scissors",
	"teddy bear",
	"hair drier",
	"toothbrush",
}

// Portuguese names for the COCO classes, used in user-facing descriptions
var COCOClassesPT = map[string]string{
	"person":         "pessoa",
	"bicycle":        "bicicleta",
	"car":            "carro",
	"motorcycle":     "moto",
	"airplane":       "avião",
	"bus":            "ônibus",
	"train":          "trem",
	"truck":          "caminhão",
	"boat":           "barco",
	"traffic light":  "semáforo",
	"fire hydrant":   "hidrante",
	"stop sign":      "placa de pare",
	"parking meter":  "parquímetro",
	"bench":          "banco",
	"bird":           "pássaro",
	"cat":            "gato",
	"dog":            "cachorro",
	"horse":          "cavalo",
	"sheep":          "ovelha",
	"cow":            "vaca",
	"elephant":       "elefante",
	"bear":           "urso",
	"zebra":          "zebra",
	"giraffe":        "girafa",
	"backpack":       "mochila",
	"umbrella":       "guarda-chuva",
	"handbag":        "bolsa",
	"tie":            "gravata",
	"suitcase":       "mala",
	"frisbee":        "frisbee",
	"skis":           "esquis",
	"snowboard":      "snowboard",
	"sports ball":    "bola",
	"kite":           "pipa",
	"baseball bat":   "taco de beisebol",
	"baseball glove": "luva de beisebol",
	"skateboard":     "skate",
	"surfboard":      "prancha de surf",
	"tennis racket":  "raquete de tênis",
	"bottle":         "garrafa",
	"wine glass":     "taça de vinho",
	"cup":            "copo",
	"fork":           "garfo",
	"knife":          "faca",
	"spoon":          "colher",
	"bowl":           "tigela",
	"banana":         "banana",
	"apple":          "maçã",
	"sandwich":       "sanduíche",
	"orange":         "laranja",
	"broccoli":       "brócolis",
	"carrot":         "cenoura",
	"hot dog":        "cachorro-quente",
	"pizza":          "pizza",
	"donut":          "rosquinha",
	"cake":           "bolo",
	"chair":          "cadeira",
	"couch":          "sofá",
	"potted plant":   "planta em vaso",
	"bed":            "cama",
	"dining table":   "mesa de jantar",
	"toilet":         "vaso sanitário",
	"tv":             "televisão",
	"laptop":         "notebook",
	"mouse":          "mouse",
	"remote":         "controle remoto",
	"keyboard":       "teclado",
	"cell phone":     "celular",
	"microwave":      "micro-ondas",
	"oven":           "forno",
	"toaster":        "torradeira",
	"sink":           "pia",
	"refrigerator":   "geladeira",
	"book":           "livro",
	"clock":          "relógio",
	"vase":           "vaso",
	"scissors":       "tesoura",
	"teddy bear":     "urso de pelúcia",
	"hair drier":     "secador de cabelo",
	"toothbrush":     "escova de dentes",
}

// ClassName returns classes[id], or "cls<id>" if id is out of range
func ClassName(classes []string, id int) string {
	if id >= 0 && id < len(classes) {
		return classes[id]
	}
	return fmt.Sprintf("cls%v", id)
}

// LabelPT returns the Portuguese label of a class name, or the name itself if we have no translation
func LabelPT(name string) string {
	if pt, ok := COCOClassesPT[name]; ok {
		return pt
	}
	return name
}
