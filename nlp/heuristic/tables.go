package heuristic

// subcategory is an ordered keyword group under a category.
type subcategory struct {
	name     string
	keywords []string
}

// category is one entry of the closed category vocabulary. Detection is
// first-match, so order matters and the tables are slices, not maps.
type category struct {
	name          string
	keywords      []string
	subcategories []subcategory
}

var categoryTable = []category{
	{
		name: "спорт",
		keywords: []string{
			"зал", "тренир", "спорт", "бег", "качал", "пресс",
			"отжим", "подтяг", "присед", "кардио", "йога", "пилатес",
			"бассейн", "плав", "велосипед", "фитнес",
		},
		subcategories: []subcategory{
			{name: "бодибилдинг", keywords: []string{"качал", "пожал", "жим", "присед", "становая"}},
			{name: "кардио", keywords: []string{"бег", "бежал", "кардио", "велосипед"}},
			{name: "йога", keywords: []string{"йога", "медитац"}},
		},
	},
	{
		name: "учёба",
		keywords: []string{
			"учи", "читал", "книг", "курс", "лекци", "учёб",
			"урок", "задач", "домашк", "экзамен", "конспект",
			"изуча", "разбир", "математ", "програм", "учебник",
		},
		subcategories: []subcategory{
			{name: "математика", keywords: []string{"математ", "алгебр", "геометр", "матан"}},
			{name: "программирование", keywords: []string{"програм", "код", "python", "java", "алгоритм"}},
			{name: "языки", keywords: []string{"английск", "немецк", "французск", "язык"}},
		},
	},
	{
		name: "готовка",
		keywords: []string{
			"готов", "приготов", "сварил", "пожарил", "испёк",
			"кухн", "рецепт", "еда", "обед", "ужин", "завтрак",
		},
	},
	{
		name: "работа",
		keywords: []string{
			"работ", "проект", "задач", "встреч", "созвон",
			"деплой", "фича", "баг", "код ревью", "митинг",
		},
	},
	{
		name: "творчество",
		keywords: []string{
			"рисов", "писал", "музык", "игра на", "сочин",
			"творч", "художеств", "стих", "песн", "картин",
		},
		subcategories: []subcategory{
			{name: "музыка", keywords: []string{"музык", "гитар", "пиани", "играл на"}},
			{name: "рисование", keywords: []string{"рисов", "нарисов", "художеств", "картин"}},
		},
	},
	{
		name: "саморазвитие",
		keywords: []string{
			"медитиров", "размышл", "психолог", "личностн",
			"саморазв", "цели", "планиров", "дневник",
		},
	},
	{
		name: "социальное",
		keywords: []string{
			"встреч", "друзья", "семья", "общен", "позвон",
			"гости", "компан", "тусовк", "свидан",
		},
	},
	{
		name: "дом",
		keywords: []string{
			"убир", "уборк", "помыл", "постир", "почист",
			"порядок", "быт",
		},
	},
}

// achievementEntry weights a trigger substring. First match wins.
type achievementEntry struct {
	keyword string
	weight  int
}

var achievementTable = []achievementEntry{
	{"впервые", 20},
	{"первый раз", 20},
	{"рекорд", 25},
	{"побил рекорд", 25},
	{"личный рекорд", 25},
	{"достижени", 15},
	{"смог", 10},
	{"получилось", 10},
	{"наконец", 8},
	{"завершил", 12},
	{"окончил", 15},
	{"сдал экзамен", 20},
	{"защитил", 20},
}
